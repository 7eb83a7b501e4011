package session

import (
	"fmt"
	"sort"
)

// Store maps session ids to sessions.
// It is owned by one Engine and is not safe for concurrent use.
type Store struct {
	sessions map[string]*Session
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// Put registers a new session. An existing id is never overwritten.
func (s *Store) Put(sess *Session) error {
	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("%w: %s", ErrSessionExists, sess.ID)
	}
	s.sessions[sess.ID] = sess
	return nil
}

// Delete removes a session and reports whether it was present.
func (s *Store) Delete(id string) bool {
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return len(s.sessions)
}

// IDs returns all session ids in sorted order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear drops every session.
func (s *Store) Clear() {
	s.sessions = make(map[string]*Session)
}
