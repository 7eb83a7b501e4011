package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dinepick/pkg/interfaces"
)

func TestConnection_InterfaceCompliance(t *testing.T) {
	var _ interfaces.Connection = &Connection{}
}

func TestConnection_NewConnectionInitialization(t *testing.T) {
	serverConn, _ := newSocketPair(t)

	conn := NewConnection(serverConn, "c1", 0, 0)
	defer conn.Close()

	assert.Equal(t, "c1", conn.ID())
	assert.Equal(t, DefaultSendBufferSize, cap(conn.writeCh))
	assert.Equal(t, DefaultWriteTimeout, conn.writeTimeout)
}

func TestConnection_EnqueueDeliversFrame(t *testing.T) {
	serverConn, client := newSocketPair(t)
	conn := NewConnection(serverConn, "c1", 10, time.Second)
	defer conn.Close()

	require.NoError(t, conn.Enqueue([]byte(`{"event":"voteUpdate","data":{}}`)))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	messageType, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, messageType)
	assert.JSONEq(t, `{"event":"voteUpdate","data":{}}`, string(data))
}

func TestConnection_EnqueuePreservesOrder(t *testing.T) {
	serverConn, client := newSocketPair(t)
	conn := NewConnection(serverConn, "c1", 10, time.Second)
	defer conn.Close()

	for _, frame := range []string{`"1"`, `"2"`, `"3"`} {
		require.NoError(t, conn.Enqueue([]byte(frame)))
	}

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	for _, want := range []string{`"1"`, `"2"`, `"3"`} {
		_, data, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestConnection_EnqueueFullBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	// No writer goroutine, so the buffer never drains.
	conn := &Connection{id: "c1", writeCh: make(chan []byte, 2), ctx: ctx, cancel: cancel}

	require.NoError(t, conn.Enqueue([]byte("a")))
	require.NoError(t, conn.Enqueue([]byte("b")))
	assert.ErrorIs(t, conn.Enqueue([]byte("c")), ErrSendBufferFull)

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Enqueue([]byte("d")), ErrConnectionClosed)
}

func TestConnection_CloseIdempotent(t *testing.T) {
	serverConn, _ := newSocketPair(t)
	conn := NewConnection(serverConn, "c1", 10, time.Second)

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
	assert.ErrorIs(t, conn.Enqueue([]byte("x")), ErrConnectionClosed)
}

func TestConnection_ClosesWhenPeerGone(t *testing.T) {
	serverConn, client := newSocketPair(t)
	conn := NewConnection(serverConn, "c1", 10, 100*time.Millisecond)
	require.NoError(t, client.Close())

	// Writes eventually fail once the peer is gone, which closes the connection.
	require.Eventually(t, func() bool {
		_ = conn.Enqueue([]byte(`"ping"`))
		select {
		case <-conn.Done():
			return true
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestConnection_ConcurrentEnqueue(t *testing.T) {
	serverConn, client := newSocketPair(t)
	conn := NewConnection(serverConn, "c1", 200, time.Second)
	defer conn.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, conn.Enqueue([]byte(`"x"`)))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < 100; i++ {
		_, _, err := client.ReadMessage()
		require.NoError(t, err)
	}
}

func TestConnection_CloseGracefullyFlushesQueue(t *testing.T) {
	serverConn, client := newSocketPair(t)
	conn := NewConnection(serverConn, "c1", 10, time.Second)

	for _, frame := range []string{`"1"`, `"2"`, `"3"`} {
		require.NoError(t, conn.Enqueue([]byte(frame)))
	}
	require.NoError(t, conn.CloseGracefully(time.Second))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	for _, want := range []string{`"1"`, `"2"`, `"3"`} {
		_, data, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
	_, _, err := client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	// Closing again is a no-op.
	assert.NoError(t, conn.CloseGracefully(time.Second))
	assert.NoError(t, conn.Close())
}

func TestConnection_CloseSendsCloseFrame(t *testing.T) {
	serverConn, client := newSocketPair(t)
	conn := NewConnection(serverConn, "c1", 10, time.Second)

	require.NoError(t, conn.Close())

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
