package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dinepick/internal/session"
)

const (
	DefaultSweepInterval = 60 * time.Second
	commandBufferSize    = 1000
)

// Command is one unit of work executed against the engine.
type Command func(e *session.Engine) error

type envelope struct {
	fn     Command
	result chan error
}

// Hub owns the session engine and runs every operation on it from a single
// goroutine.
// ARCHITECTURAL DISCOVERY: Realtime events, HTTP calls, disconnects and the
// inactivity sweep all pass through one select loop, so each operation runs to
// completion before the next one starts.
type Hub struct {
	engine        *session.Engine
	sweepInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	// TECHNICAL DISCOVERY: Buffered so bursts of inbound events do not stall
	// the read pumps while the loop is busy.
	commandChannel  chan envelope
	shutdownChannel chan struct{}
	done            chan struct{}

	running bool
	mu      sync.RWMutex
}

// NewHub creates a hub around an engine. A non-positive sweep interval uses
// DefaultSweepInterval.
func NewHub(engine *session.Engine, sweepInterval time.Duration, logger *slog.Logger) *Hub {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		engine:         engine,
		sweepInterval:  sweepInterval,
		logger:         logger.With("component", "hub"),
		now:            time.Now,
		commandChannel: make(chan envelope, commandBufferSize),
	}
}

// Start begins hub processing
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.shutdownChannel = make(chan struct{})
	h.done = make(chan struct{})
	shutdown, done := h.shutdownChannel, h.done
	h.mu.Unlock()

	h.logger.Info("starting hub", "sweep_interval", h.sweepInterval)
	go h.run(ctx, shutdown, done)
	return nil
}

// Stop signals the loop to end every session and exit, then waits for it.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	shutdown, done := h.shutdownChannel, h.done

	select {
	case <-shutdown:
	default:
		close(shutdown)
	}
	h.mu.Unlock()

	h.logger.Info("stopping hub")
	<-done
	return nil
}

// Running reports whether the loop is accepting commands.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Do runs fn on the hub goroutine and returns its error.
// If ctx ends before fn is scheduled, fn never runs.
func (h *Hub) Do(ctx context.Context, fn Command) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	done := h.done
	h.mu.RUnlock()

	cmd := envelope{fn: fn, result: make(chan error, 1)}
	select {
	case h.commandChannel <- cmd:
	case <-done:
		return ErrHubNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		return err
	case <-done:
		select {
		case err := <-cmd.result:
			return err
		default:
			return ErrHubNotRunning
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect removes a closed connection from every session.
func (h *Hub) Disconnect(connID string) error {
	return h.Do(context.Background(), func(e *session.Engine) error {
		e.Leave(connID)
		return nil
	})
}

// run is the main hub processing loop
func (h *Hub) run(ctx context.Context, shutdown, done chan struct{}) {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()
	defer func() {
		h.engine.Shutdown()
		h.drain()

		h.mu.Lock()
		if h.done == done {
			h.running = false
		}
		h.mu.Unlock()
		close(done)
		h.logger.Info("hub processing stopped")
	}()

	for {
		select {
		case cmd := <-h.commandChannel:
			h.execute(cmd)

		case <-ticker.C:
			h.sweep()

		case <-shutdown:
			h.logger.Info("hub shutdown requested")
			return

		case <-ctx.Done():
			h.logger.Info("hub context cancelled")
			return
		}
	}
}

// execute runs one command. A panicking command is reported to its caller
// and the loop keeps going.
func (h *Hub) execute(cmd envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("hub command panicked", "panic", r)
			cmd.result <- fmt.Errorf("%w: %v", ErrCommandPanicked, r)
		}
	}()
	cmd.result <- cmd.fn(h.engine)
}

func (h *Hub) sweep() {
	removed := h.engine.Sweep(h.now())
	if len(removed) > 0 {
		h.logger.Debug("sweep tick", "removed", removed)
	}
}

// drain fails every command still queued when the loop exits.
func (h *Hub) drain() {
	for {
		select {
		case cmd := <-h.commandChannel:
			cmd.result <- ErrHubNotRunning
		default:
			return
		}
	}
}
