package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dinepick/internal/hub"
	"dinepick/internal/session"
	"dinepick/pkg/types"
)

type sent struct {
	connID  string
	event   string
	payload interface{}
}

// recorder is both the engine transport and the router's error sender.
type recorder struct {
	mu    sync.Mutex
	sends []sent
	casts []sent
}

func (r *recorder) JoinRoom(room, connID string)  {}
func (r *recorder) LeaveRoom(room, connID string) {}
func (r *recorder) CloseRoom(room string)         {}

func (r *recorder) Broadcast(room, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casts = append(r.casts, sent{connID: room, event: event, payload: payload})
}

func (r *recorder) Send(connID, event string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sent{connID: connID, event: event, payload: payload})
	return nil
}

func (r *recorder) lastSend(connID string) (sent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sends) - 1; i >= 0; i-- {
		if r.sends[i].connID == connID {
			return r.sends[i], true
		}
	}
	return sent{}, false
}

func (r *recorder) lastError(t *testing.T, connID string) types.ErrorPayload {
	t.Helper()
	s, ok := r.lastSend(connID)
	require.True(t, ok, "no event sent to %s", connID)
	require.Equal(t, types.EventError, s.event)
	return s.payload.(types.ErrorPayload)
}

func (r *recorder) castCount(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.casts {
		if c.event == event {
			n++
		}
	}
	return n
}

type fixture struct {
	router   *Router
	hub      *hub.Hub
	recorder *recorder
}

func newFixture(t *testing.T, eventsPerMinute int) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := &recorder{}
	engine := session.NewEngine(session.NewStore(), rec, session.DefaultOptions(), logger)
	h := hub.NewHub(engine, time.Hour, logger)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Stop() })

	return &fixture{router: NewRouter(h, rec, eventsPerMinute, logger), hub: h, recorder: rec}
}

func frame(t *testing.T, event string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	require.NoError(t, err)
	return raw
}

func (f *fixture) createSession(t *testing.T, connID string) string {
	t.Helper()
	f.router.Route(context.Background(), connID, frame(t, types.EventCreateSession, map[string]string{"displayName": "Ana"}))
	s, ok := f.recorder.lastSend(connID)
	require.True(t, ok)
	require.Equal(t, types.EventSessionCreated, s.event)
	return s.payload.(types.SessionCreated).SessionID
}

func TestRouter_CreateSession(t *testing.T) {
	f := newFixture(t, 0)
	id := f.createSession(t, "c1")
	assert.NotEmpty(t, id)
}

func TestRouter_MalformedFrames(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.router.Route(ctx, "c1", []byte(`not json`))
	assert.Equal(t, session.CodeValidation, f.recorder.lastError(t, "c1").Code)

	f.router.Route(ctx, "c1", []byte(`{"event":"dance"}`))
	payload := f.recorder.lastError(t, "c1")
	assert.Equal(t, session.CodeValidation, payload.Code)
	assert.Contains(t, payload.Message, "unknown event")

	f.router.Route(ctx, "c1", []byte(`{"event":"joinSession","data":"oops"}`))
	assert.Equal(t, session.CodeValidation, f.recorder.lastError(t, "c1").Code)
}

func TestRouter_PayloadValidation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.router.Route(ctx, "c1", frame(t, types.EventCreateSession, map[string]string{}))
	assert.Equal(t, session.CodeValidation, f.recorder.lastError(t, "c1").Code)

	f.router.Route(ctx, "c1", frame(t, types.EventJoinSession, map[string]string{"displayName": "Bo"}))
	payload := f.recorder.lastError(t, "c1")
	assert.Equal(t, session.CodeValidation, payload.Code)
	assert.Contains(t, payload.Message, "SessionID is required")

	f.router.Route(ctx, "c1", frame(t, types.EventVote, map[string]string{"sessionId": "abc", "candidateId": "x"}))
	assert.Equal(t, session.CodeValidation, f.recorder.lastError(t, "c1").Code)
}

func TestRouter_EngineErrorsReachOnlyTheCaller(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.router.Route(ctx, "c2", frame(t, types.EventJoinSession, map[string]string{"sessionId": "missing", "displayName": "Bo"}))
	assert.Equal(t, session.CodeSessionNotFound, f.recorder.lastError(t, "c2").Code)

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	f.router.Route(ctx, "c3", frame(t, types.EventCreateSession, map[string]string{"displayName": string(long)}))
	assert.Equal(t, session.CodeValidation, f.recorder.lastError(t, "c3").Code)

	assert.Equal(t, 0, f.recorder.castCount(types.EventError))
}

func TestRouter_JoinVoteLeave(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	id := f.createSession(t, "c1")

	f.router.Route(ctx, "c2", frame(t, types.EventJoinSession, map[string]string{"sessionId": id, "displayName": "Bo"}))
	s, _ := f.recorder.lastSend("c2")
	assert.Equal(t, types.EventSessionState, s.event)
	assert.Equal(t, 1, f.recorder.castCount(types.EventUserJoined))

	require.NoError(t, f.hub.Do(ctx, func(e *session.Engine) error {
		return e.SetCandidates(id, []types.Candidate{{ID: "x", Name: "X"}})
	}))

	f.router.Route(ctx, "c1", frame(t, types.EventVote, map[string]interface{}{"sessionId": id, "candidateId": "x", "liked": true}))
	// Older clients send the choice as "vote".
	f.router.Route(ctx, "c2", frame(t, types.EventVote, map[string]interface{}{"sessionId": id, "candidateId": "x", "vote": false}))
	assert.Equal(t, 2, f.recorder.castCount(types.EventVoteUpdate))
	assert.Equal(t, 1, f.recorder.castCount(types.EventResultsReady))

	f.router.Route(ctx, "c1", frame(t, types.EventVote, map[string]interface{}{"sessionId": id, "candidateId": "ghost", "liked": true}))
	assert.Equal(t, session.CodeValidation, f.recorder.lastError(t, "c1").Code)

	f.router.Route(ctx, "c2", frame(t, types.EventLeaveSession, map[string]string{"sessionId": id}))
	assert.Equal(t, 1, f.recorder.castCount(types.EventUserLeft))

	f.router.Route(ctx, "c2", frame(t, types.EventLeaveSession, map[string]string{"sessionId": id}))
	assert.Equal(t, session.CodeNotParticipant, f.recorder.lastError(t, "c2").Code)
}

func TestRouter_RateLimit(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	join := frame(t, types.EventJoinSession, map[string]string{"sessionId": "missing", "displayName": "Bo"})

	for i := 0; i < 3; i++ {
		f.router.Route(ctx, "c1", join)
		assert.Equal(t, session.CodeSessionNotFound, f.recorder.lastError(t, "c1").Code)
	}
	f.router.Route(ctx, "c1", join)
	assert.Equal(t, CodeRateLimited, f.recorder.lastError(t, "c1").Code)

	// Other connections have their own budget.
	f.router.Route(ctx, "c2", join)
	assert.Equal(t, session.CodeSessionNotFound, f.recorder.lastError(t, "c2").Code)

	f.router.Forget("c1")
	f.router.Route(ctx, "c1", join)
	assert.Equal(t, session.CodeSessionNotFound, f.recorder.lastError(t, "c1").Code)
}

func TestRouter_HubStoppedIsInternalError(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.hub.Stop())

	f.router.Route(context.Background(), "c1", frame(t, types.EventCreateSession, map[string]string{"displayName": "Ana"}))
	assert.Equal(t, session.CodeInternal, f.recorder.lastError(t, "c1").Code)
}

func TestRouter_RunStopsWithContext(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.router.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
