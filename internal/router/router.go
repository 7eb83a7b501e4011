package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dinepick/internal/hub"
	"dinepick/internal/metrics"
	"dinepick/internal/session"
	"dinepick/pkg/types"
)

// Executor runs a command against the session engine.
type Executor interface {
	Do(ctx context.Context, fn hub.Command) error
}

// Sender delivers a unicast event to one connection.
type Sender interface {
	Send(connID, event string, payload interface{}) error
}

// Router decodes inbound realtime events and dispatches them to the engine.
// Failures are reported to the sending connection only.
type Router struct {
	executor    Executor
	sender      Sender
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewRouter creates a router allowing eventsPerMinute events per connection.
func NewRouter(executor Executor, sender Sender, eventsPerMinute int, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		executor:    executor,
		sender:      sender,
		rateLimiter: NewRateLimiter(eventsPerMinute),
		logger:      logger.With("component", "router"),
	}
}

// Route handles one inbound frame from connID.
func (r *Router) Route(ctx context.Context, connID string, data []byte) {
	event, err := r.route(ctx, connID, data)
	if err == nil {
		return
	}

	code := errorCode(err)
	metrics.EventErrors.WithLabelValues(metricEvent(event), code).Inc()
	r.logger.Debug("event rejected", "connection_id", connID, "event", event, "code", code, "error", err)

	if sendErr := r.sender.Send(connID, types.EventError, types.ErrorPayload{
		Message: err.Error(),
		Code:    code,
	}); sendErr != nil {
		r.logger.Debug("failed to send error event", "connection_id", connID, "error", sendErr)
	}
}

// Forget drops rate limit state of a closed connection.
func (r *Router) Forget(connID string) {
	r.rateLimiter.Forget(connID)
}

// Run prunes idle rate limit state until ctx ends.
func (r *Router) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.rateLimiter.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.rateLimiter.Cleanup()
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Router) route(ctx context.Context, connID string, data []byte) (string, error) {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	metrics.EventsReceived.WithLabelValues(metricEvent(env.Event)).Inc()

	if !r.rateLimiter.Allow(connID) {
		return env.Event, ErrRateLimitExceeded
	}

	switch env.Event {
	case types.EventCreateSession:
		var req types.CreateSessionRequest
		if err := decode(env.Data, &req); err != nil {
			return env.Event, err
		}
		return env.Event, r.executor.Do(ctx, func(e *session.Engine) error {
			_, err := e.CreateSession(connID, req.DisplayName)
			return err
		})

	case types.EventJoinSession:
		var req types.JoinSessionRequest
		if err := decode(env.Data, &req); err != nil {
			return env.Event, err
		}
		return env.Event, r.executor.Do(ctx, func(e *session.Engine) error {
			return e.JoinSession(connID, req.SessionID, req.DisplayName)
		})

	case types.EventVote:
		var req types.VoteRequest
		if err := decode(env.Data, &req); err != nil {
			return env.Event, err
		}
		return env.Event, r.executor.Do(ctx, func(e *session.Engine) error {
			return e.Vote(connID, req.SessionID, req.CandidateID, req.Choice())
		})

	case types.EventLeaveSession:
		var req types.LeaveSessionRequest
		if err := decode(env.Data, &req); err != nil {
			return env.Event, err
		}
		return env.Event, r.executor.Do(ctx, func(e *session.Engine) error {
			return e.LeaveSession(connID, req.SessionID)
		})

	default:
		return env.Event, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// decode unmarshals and validates an event payload.
func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return types.Validate(v)
}

func errorCode(err error) string {
	if errors.Is(err, ErrRateLimitExceeded) {
		return CodeRateLimited
	}
	return session.Code(err)
}

// metricEvent bounds the event label to known names.
func metricEvent(event string) string {
	switch event {
	case types.EventCreateSession, types.EventJoinSession, types.EventVote, types.EventLeaveSession:
		return event
	default:
		return "unknown"
	}
}
