package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"dinepick/internal/app"
	"dinepick/internal/config"
	"dinepick/internal/logger"
	"dinepick/pkg/types"
)

const frameTimeout = 3 * time.Second

// server is a running application bound to a loopback port.
type server struct {
	base string
	stop func()
}

func startServer(t *testing.T, mutate func(*config.Config)) *server {
	t.Helper()

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	application, err := app.NewApplication(context.Background(), cfg, "integration", logger.Discard())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, ln) }()

	srv := &server{base: "http://" + ln.Addr().String()}
	srv.stop = func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	}
	t.Cleanup(func() {
		if ctx.Err() == nil {
			srv.stop()
		}
	})
	return srv
}

// client is one realtime participant.
type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (s *server) dial(t *testing.T) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.base, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(event string, data interface{}) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(types.Frame{Event: event, Data: data}))
}

// await reads frames until one named event arrives and decodes its data.
func (c *client) await(event string, out interface{}) {
	c.t.Helper()
	deadline := time.Now().Add(frameTimeout)
	require.NoError(c.t, c.conn.SetReadDeadline(deadline))
	for {
		var env types.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.t.Fatalf("waiting for %q: %v", event, err)
		}
		if env.Event != event {
			continue
		}
		if out != nil {
			require.NoError(c.t, json.Unmarshal(env.Data, out))
		}
		return
	}
}

func (s *server) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.base+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func liked(v bool) *bool { return &v }
