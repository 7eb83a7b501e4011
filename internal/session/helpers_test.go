package session

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"dinepick/pkg/types"
)

type sentEvent struct {
	Room    string
	ConnID  string
	Event   string
	Payload interface{}
}

// fakeTransport records every event the engine emits.
type fakeTransport struct {
	rooms      map[string]map[string]bool
	broadcasts []sentEvent
	sends      []sentEvent
	closed     []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{rooms: make(map[string]map[string]bool)}
}

func (f *fakeTransport) JoinRoom(room, connID string) {
	if f.rooms[room] == nil {
		f.rooms[room] = make(map[string]bool)
	}
	f.rooms[room][connID] = true
}

func (f *fakeTransport) LeaveRoom(room, connID string) {
	delete(f.rooms[room], connID)
}

func (f *fakeTransport) CloseRoom(room string) {
	delete(f.rooms, room)
	f.closed = append(f.closed, room)
}

func (f *fakeTransport) Broadcast(room, event string, payload interface{}) {
	f.broadcasts = append(f.broadcasts, sentEvent{Room: room, Event: event, Payload: payload})
}

func (f *fakeTransport) Send(connID, event string, payload interface{}) error {
	f.sends = append(f.sends, sentEvent{ConnID: connID, Event: event, Payload: payload})
	return nil
}

func (f *fakeTransport) count(room, event string) int {
	n := 0
	for _, b := range f.broadcasts {
		if b.Room == room && b.Event == event {
			n++
		}
	}
	return n
}

func (f *fakeTransport) last(room, event string) (interface{}, bool) {
	for i := len(f.broadcasts) - 1; i >= 0; i-- {
		if f.broadcasts[i].Room == room && f.broadcasts[i].Event == event {
			return f.broadcasts[i].Payload, true
		}
	}
	return nil, false
}

func (f *fakeTransport) lastSend(connID, event string) (interface{}, bool) {
	for i := len(f.sends) - 1; i >= 0; i-- {
		if f.sends[i].ConnID == connID && f.sends[i].Event == event {
			return f.sends[i].Payload, true
		}
	}
	return nil, false
}

func (f *fakeTransport) reset() {
	f.broadcasts = nil
	f.sends = nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEngine struct {
	*Engine
	store     *Store
	transport *fakeTransport
	clock     *fakeClock
}

func newTestEngine(t *testing.T, mutate ...func(*Options)) *testEngine {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	store := NewStore()
	transport := newFakeTransport()
	clock := &fakeClock{now: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)}

	e := NewEngine(store, transport, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = clock.Now

	return &testEngine{Engine: e, store: store, transport: transport, clock: clock}
}

func permissive(o *Options) { o.StrictVoting = false }

func testCandidates(ids ...string) []types.Candidate {
	out := make([]types.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Candidate{
			ID:       id,
			Name:     "Restaurant " + id,
			Cuisines: []string{"Cafe"},
		})
	}
	return out
}

// mustCreate creates a session owned by connID and returns its id.
func (te *testEngine) mustCreate(t *testing.T, connID string) string {
	t.Helper()
	created, err := te.CreateSession(connID, "user-"+connID)
	if err != nil {
		t.Fatalf("CreateSession(%s): %v", connID, err)
	}
	return created.SessionID
}

func (te *testEngine) mustJoin(t *testing.T, connID, sessionID string) {
	t.Helper()
	if err := te.JoinSession(connID, sessionID, "user-"+connID); err != nil {
		t.Fatalf("JoinSession(%s): %v", connID, err)
	}
}

func (te *testEngine) mustVote(t *testing.T, connID, sessionID, candidateID string, liked bool) {
	t.Helper()
	if err := te.Vote(connID, sessionID, candidateID, liked); err != nil {
		t.Fatalf("Vote(%s, %s): %v", connID, candidateID, err)
	}
}

func totalVotes(votes map[string]types.Tally) int {
	n := 0
	for _, tally := range votes {
		n += tally.Likes + tally.Dislikes
	}
	return n
}

func connID(i int) string { return fmt.Sprintf("conn-%d", i) }
