package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultSendBufferSize = 100
	DefaultWriteTimeout   = 5 * time.Second

	// closeFrameTimeout bounds the close handshake frame written on Close.
	closeFrameTimeout = time.Second
)

// Connection implements the interfaces.Connection interface
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized, so every frame
// goes through writeCh to a single writer goroutine.
type Connection struct {
	conn         *websocket.Conn
	id           string
	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once

	drain      chan struct{}
	drainOnce  sync.Once
	writerDone chan struct{}
}

// NewConnection wraps an upgraded socket and starts its writer.
func NewConnection(conn *websocket.Conn, id string, bufferSize int, writeTimeout time.Duration) *Connection {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBufferSize
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           id,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		drain:        make(chan struct{}),
		writerDone:   make(chan struct{}),
	}

	go c.writeLoop()
	return c
}

// ID returns the connection id.
func (c *Connection) ID() string {
	return c.id
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Context is cancelled when the connection closes.
func (c *Connection) Context() context.Context {
	return c.ctx
}

// writeLoop is the only goroutine that writes data frames.
// A failed write closes the connection so the read pump exits too.
func (c *Connection) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case data := <-c.writeCh:
			if err := c.write(data); err != nil {
				_ = c.Close()
				return
			}

		case <-c.drain:
			c.flush()
			return

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) write(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// flush writes whatever is still queued.
func (c *Connection) flush() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Enqueue queues one encoded frame without blocking.
// FUNCTIONAL DISCOVERY: A full buffer means the client cannot keep up; the
// error lets the broadcaster drop the connection instead of stalling the room.
func (c *Connection) Enqueue(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// CloseGracefully writes the frames already queued, then closes with a
// going-away close frame. It waits at most timeout for the queue to drain.
func (c *Connection) CloseGracefully(timeout time.Duration) error {
	c.drainOnce.Do(func() { close(c.drain) })

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.writerDone:
	case <-timer.C:
	}
	return c.Close()
}

// Close cancels the writer, sends a going-away close frame and closes the
// socket. Safe to call repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn == nil {
			return
		}
		// TECHNICAL DISCOVERY: WriteControl is safe alongside the writer; its
		// error only means the peer is already gone.
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing connection")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeFrameTimeout))
		err = c.conn.Close()
	})
	return err
}
