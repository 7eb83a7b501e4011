package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoDispatcher records every routed frame and answers the sender.
type echoDispatcher struct {
	registry *Registry

	mu     sync.Mutex
	routed []string
}

func (d *echoDispatcher) Route(ctx context.Context, connID string, data []byte) {
	d.mu.Lock()
	d.routed = append(d.routed, string(data))
	d.mu.Unlock()
	_ = d.registry.Send(connID, "echo", map[string]string{"raw": string(data)})
}

func (d *echoDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.routed)
}

type recordingDisconnector struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingDisconnector) Disconnect(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, connID)
	return nil
}

func (r *recordingDisconnector) disconnected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

type recordingForgetter struct {
	mu  sync.Mutex
	ids []string
}

func (f *recordingForgetter) Forget(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, connID)
}

func (f *recordingForgetter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

type handlerFixture struct {
	registry     *Registry
	dispatcher   *echoDispatcher
	disconnector *recordingDisconnector
	forgetter    *recordingForgetter
	server       *httptest.Server
}

func newHandlerFixture(t *testing.T, cfg HandlerConfig) *handlerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry(logger)
	f := &handlerFixture{
		registry:     registry,
		dispatcher:   &echoDispatcher{registry: registry},
		disconnector: &recordingDisconnector{},
		forgetter:    &recordingForgetter{},
	}
	handler := NewHandler(registry, f.dispatcher, f.disconnector, cfg, logger, f.forgetter)
	f.server = httptest.NewServer(handler)
	t.Cleanup(f.server.Close)
	return f
}

func (f *handlerFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f.server.URL), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHandler_DefaultsFillZeroConfig(t *testing.T) {
	h := NewHandler(newTestRegistry(), &echoDispatcher{}, &recordingDisconnector{}, HandlerConfig{}, nil)
	assert.Equal(t, DefaultHandlerConfig(), h.cfg)
}

func TestHandler_RoutesTextFrames(t *testing.T) {
	f := newHandlerFixture(t, DefaultHandlerConfig())
	client := f.dial(t)

	require.Eventually(t, func() bool {
		return f.registry.GetStats()["total_connections"] == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"event":"createSession"}`)))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, client.ReadJSON(&frame))
	assert.Equal(t, "echo", frame.Event)
	assert.Equal(t, `{"event":"createSession"}`, frame.Data["raw"])
	assert.Equal(t, 1, f.dispatcher.count())
}

func TestHandler_IgnoresBinaryFrames(t *testing.T) {
	f := newHandlerFixture(t, DefaultHandlerConfig())
	client := f.dial(t)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{}`)))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, 1, f.dispatcher.count())
}

func TestHandler_CloseTriggersDisconnect(t *testing.T) {
	f := newHandlerFixture(t, DefaultHandlerConfig())
	client := f.dial(t)

	require.Eventually(t, func() bool {
		return f.registry.GetStats()["total_connections"] == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = client.Close()

	require.Eventually(t, func() bool {
		return len(f.disconnector.disconnected()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return f.registry.GetStats()["total_connections"] == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.forgetter.count())
}

func TestHandler_MissedHeartbeatClosesConnection(t *testing.T) {
	cfg := DefaultHandlerConfig()
	cfg.PingInterval = 20 * time.Millisecond
	cfg.ReadTimeout = 100 * time.Millisecond
	f := newHandlerFixture(t, cfg)

	// The client never reads, so it never answers a ping.
	f.dial(t)

	require.Eventually(t, func() bool {
		return len(f.disconnector.disconnected()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_OversizedFrameClosesConnection(t *testing.T) {
	cfg := DefaultHandlerConfig()
	cfg.MaxMessageBytes = 16
	f := newHandlerFixture(t, cfg)
	client := f.dial(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"event":"createSession","data":{}}`)))

	require.Eventually(t, func() bool {
		return len(f.disconnector.disconnected()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.dispatcher.count())
}

func TestHandler_ConcurrentConnections(t *testing.T) {
	f := newHandlerFixture(t, DefaultHandlerConfig())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(f.server.URL), nil)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()
			assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{}`)))
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err = conn.ReadMessage()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, f.dispatcher.count())
	require.Eventually(t, func() bool {
		return len(f.disconnector.disconnected()) == 10
	}, 2*time.Second, 10*time.Millisecond)
}
