package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dinepick/internal/metrics"
)

// Dispatcher handles one inbound text frame from a connection.
type Dispatcher interface {
	Route(ctx context.Context, connID string, data []byte)
}

// Disconnector is notified once a connection has closed.
type Disconnector interface {
	Disconnect(connID string) error
}

// Forgetter drops per-connection state kept outside the registry.
type Forgetter interface {
	Forget(connID string)
}

// HandlerConfig tunes socket timeouts and limits.
type HandlerConfig struct {
	PingInterval    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	SendBufferSize  int
	MaxMessageBytes int64
}

// DefaultHandlerConfig returns the heartbeat and buffer defaults.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		PingInterval:    30 * time.Second,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    DefaultWriteTimeout,
		SendBufferSize:  DefaultSendBufferSize,
		MaxMessageBytes: 64 * 1024,
	}
}

// WebSocket upgrader with production-ready settings
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Sessions are joined from shared links on any origin.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades requests and runs the read pump of each connection.
type Handler struct {
	registry     *Registry
	dispatcher   Dispatcher
	disconnector Disconnector
	forgetters   []Forgetter
	cfg          HandlerConfig
	logger       *slog.Logger
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(registry *Registry, dispatcher Dispatcher, disconnector Disconnector, cfg HandlerConfig, logger *slog.Logger, forgetters ...Forgetter) *Handler {
	defaults := DefaultHandlerConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaults.SendBufferSize
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaults.MaxMessageBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:     registry,
		dispatcher:   dispatcher,
		disconnector: disconnector,
		forgetters:   forgetters,
		cfg:          cfg,
		logger:       logger.With("component", "websocket"),
	}
}

// ServeHTTP upgrades the request and hands the socket to its read pump.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	wsConn := NewConnection(conn, uuid.NewString(), h.cfg.SendBufferSize, h.cfg.WriteTimeout)
	if err := h.registry.RegisterConnection(wsConn); err != nil {
		h.logger.Error("failed to register connection", "connection_id", wsConn.ID(), "error", err)
		_ = wsConn.Close()
		return
	}

	metrics.ConnectionsActive.Inc()
	h.logger.Info("connection opened", "connection_id", wsConn.ID(), "remote_addr", r.RemoteAddr)
	go h.handleConnection(wsConn)
}

// handleConnection runs the heartbeat and read pump until the socket closes,
// then removes the connection from every session.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		if err := h.disconnector.Disconnect(conn.ID()); err != nil {
			h.logger.Debug("disconnect failed", "connection_id", conn.ID(), "error", err)
		}
		for _, f := range h.forgetters {
			f.Forget(conn.ID())
		}
		h.registry.UnregisterConnection(conn)
		_ = conn.Close()
		metrics.ConnectionsActive.Dec()
		h.logger.Info("connection closed", "connection_id", conn.ID())
	}()

	conn.conn.SetReadLimit(h.cfg.MaxMessageBytes)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		h.logger.Warn("failed to set read deadline", "connection_id", conn.ID(), "error", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	// TECHNICAL DISCOVERY: WriteControl may run concurrently with the writer
	// goroutine, so pings do not go through writeCh.
	go func() {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					_ = conn.Close()
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "connection_id", conn.ID(), "error", err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			h.dispatcher.Route(conn.Context(), conn.ID(), data)
		}
	}
}
