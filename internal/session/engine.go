package session

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"dinepick/internal/metrics"
	"dinepick/pkg/interfaces"
	"dinepick/pkg/types"
)

const (
	DefaultMaxParticipants      = 10
	DefaultMaxDisplayNameLength = 50
	DefaultInactivityTimeout    = 5 * time.Minute
	DefaultEmptySessionGrace    = time.Minute
)

// Options tunes the session protocol.
type Options struct {
	MaxParticipants      int
	MaxDisplayNameLength int
	InactivityTimeout    time.Duration
	EmptySessionGrace    time.Duration

	// StrictVoting rejects votes on unknown candidates and ignores repeat
	// votes. When false every vote is tallied.
	StrictVoting bool
}

// DefaultOptions returns the standard session limits with strict voting.
func DefaultOptions() Options {
	return Options{
		MaxParticipants:      DefaultMaxParticipants,
		MaxDisplayNameLength: DefaultMaxDisplayNameLength,
		InactivityTimeout:    DefaultInactivityTimeout,
		EmptySessionGrace:    DefaultEmptySessionGrace,
		StrictVoting:         true,
	}
}

// Stats summarizes live engine state.
type Stats struct {
	Sessions     int `json:"sessions"`
	Participants int `json:"participants"`
}

// Engine runs the session protocol against a Store and emits events through
// a Transport.
// ARCHITECTURAL DISCOVERY: Engine is not safe for concurrent use. Every call
// must come from the single hub goroutine, which makes each operation atomic
// with respect to every other.
type Engine struct {
	store     *Store
	transport interfaces.Transport
	opts      Options
	logger    *slog.Logger

	// memberships maps a connection id to the one session it belongs to.
	memberships map[string]string

	now   func() time.Time
	newID func() (string, error)
}

// NewEngine creates an engine. Zero option values fall back to defaults.
func NewEngine(store *Store, transport interfaces.Transport, opts Options, logger *slog.Logger) *Engine {
	defaults := DefaultOptions()
	if opts.MaxParticipants <= 0 {
		opts.MaxParticipants = defaults.MaxParticipants
	}
	if opts.MaxDisplayNameLength <= 0 {
		opts.MaxDisplayNameLength = defaults.MaxDisplayNameLength
	}
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = defaults.InactivityTimeout
	}
	if opts.EmptySessionGrace <= 0 {
		opts.EmptySessionGrace = defaults.EmptySessionGrace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       store,
		transport:   transport,
		opts:        opts,
		logger:      logger.With("component", "session"),
		memberships: make(map[string]string),
		now:         time.Now,
		newID:       func() (string, error) { return randomSessionID(sessionIDLength) },
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// CreateSession starts a session with the caller as its only participant and
// sends sessionCreated to the caller.
func (e *Engine) CreateSession(connID, displayName string) (types.SessionCreated, error) {
	name, err := e.normalizeDisplayName(displayName)
	if err != nil {
		return types.SessionCreated{}, err
	}

	id, err := e.allocateID()
	if err != nil {
		return types.SessionCreated{}, err
	}

	if current, ok := e.memberships[connID]; ok {
		e.leave(connID, current)
	}

	now := e.now()
	sess := newSession(id, now)
	sess.Participants = append(sess.Participants, newParticipant(connID, name, now))
	if err := e.store.Put(sess); err != nil {
		return types.SessionCreated{}, err
	}
	e.memberships[connID] = id
	e.transport.JoinRoom(id, connID)

	metrics.SessionsCreated.Inc()
	metrics.ParticipantsJoined.Inc()
	metrics.SessionsActive.Set(float64(e.store.Len()))
	e.logger.Info("session created", "session_id", id, "connection_id", connID)

	created := types.SessionCreated{SessionID: id, Progress: sess.Progress()}
	if err := e.transport.Send(connID, types.EventSessionCreated, created); err != nil {
		e.logger.Warn("failed to send sessionCreated", "session_id", id, "connection_id", connID, "error", err)
	}
	return created, nil
}

// JoinSession adds the caller to an existing session. Joining a session the
// connection already belongs to is a no-op.
func (e *Engine) JoinSession(connID, sessionID, displayName string) error {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	name, err := e.normalizeDisplayName(displayName)
	if err != nil {
		return err
	}
	if p, _ := sess.participant(connID); p != nil {
		return nil
	}
	if len(sess.Participants) >= e.opts.MaxParticipants {
		return fmt.Errorf("%w: %d participants", ErrSessionFull, e.opts.MaxParticipants)
	}

	if current, ok := e.memberships[connID]; ok && current != sessionID {
		e.leave(connID, current)
	}

	now := e.now()
	p := newParticipant(connID, name, now)
	sess.Participants = append(sess.Participants, p)
	sess.EmptySince = time.Time{}
	sess.touch(now)
	e.memberships[connID] = sessionID
	e.transport.JoinRoom(sessionID, connID)

	metrics.ParticipantsJoined.Inc()
	e.logger.Info("participant joined", "session_id", sessionID, "connection_id", connID, "participants", len(sess.Participants))

	progress := sess.Progress()
	e.transport.Broadcast(sessionID, types.EventUserJoined, types.UserJoined{
		Participant: sess.participantView(p),
		Progress:    progress,
	})
	e.transport.Broadcast(sessionID, types.EventVotingProgress, progress)
	if err := e.transport.Send(connID, types.EventSessionState, sess.state()); err != nil {
		e.logger.Warn("failed to send sessionState", "session_id", sessionID, "connection_id", connID, "error", err)
	}
	return nil
}

// SetCandidates replaces a session's candidates and resets all vote state.
func (e *Engine) SetCandidates(sessionID string, candidates []types.Candidate) error {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.replaceCandidates(candidates)
	sess.touch(e.now())
	e.logger.Info("candidates replaced", "session_id", sessionID, "candidates", len(candidates), "generation", sess.Generation)

	e.transport.Broadcast(sessionID, types.EventCandidatesUpdated, types.CandidatesUpdated{
		Candidates: cloneCandidates(sess.Candidates),
	})
	e.transport.Broadcast(sessionID, types.EventVotingProgress, sess.Progress())
	return nil
}

// Vote records one like or dislike and fires resultsReady once every
// participant has voted on every candidate.
func (e *Engine) Vote(connID, sessionID, candidateID string, liked bool) error {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	p, _ := sess.participant(connID)

	if e.opts.StrictVoting {
		if p == nil {
			return fmt.Errorf("%w: %s", ErrNotParticipant, sessionID)
		}
		// FUNCTIONAL DISCOVERY: Votes that arrive while the candidate fetch is
		// still outstanding are tolerated without effect.
		if len(sess.Candidates) == 0 {
			metrics.VotesIgnored.WithLabelValues("no_candidates").Inc()
			e.logger.Debug("vote ignored, no candidates yet", "session_id", sessionID, "connection_id", connID)
			return nil
		}
		if !sess.hasCandidate(candidateID) {
			return fmt.Errorf("%w: %s", ErrUnknownCandidate, candidateID)
		}
		if p.HasVoted(candidateID) {
			metrics.VotesIgnored.WithLabelValues("repeat").Inc()
			e.logger.Debug("repeat vote ignored", "session_id", sessionID, "connection_id", connID, "candidate_id", candidateID)
			return nil
		}
	}

	tally := sess.Votes[candidateID]
	if liked {
		tally.Likes++
		metrics.VotesTotal.WithLabelValues("like").Inc()
	} else {
		tally.Dislikes++
		metrics.VotesTotal.WithLabelValues("dislike").Inc()
	}
	sess.Votes[candidateID] = tally
	if p != nil {
		p.voted[candidateID] = struct{}{}
	}
	sess.touch(e.now())

	e.transport.Broadcast(sessionID, types.EventVoteUpdate, types.VoteUpdate{
		CandidateID: candidateID,
		Tally:       tally,
	})
	e.transport.Broadcast(sessionID, types.EventVotingProgress, sess.Progress())
	e.checkCompletion(sess)
	return nil
}

// LeaveSession removes the caller from one session without closing its
// connection.
func (e *Engine) LeaveSession(connID, sessionID string) error {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if p, _ := sess.participant(connID); p == nil {
		return fmt.Errorf("%w: %s", ErrNotParticipant, sessionID)
	}
	e.leave(connID, sessionID)
	return nil
}

// Leave removes a closed connection from every session that contains it.
func (e *Engine) Leave(connID string) {
	for _, id := range e.store.IDs() {
		sess, _ := e.store.Get(id)
		if p, _ := sess.participant(connID); p != nil {
			e.removeParticipant(sess, connID)
		}
	}
	delete(e.memberships, connID)
}

// EndSession broadcasts sessionEnded and removes the session.
func (e *Engine) EndSession(sessionID, reason string) error {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	e.end(sess, reason)
	return nil
}

// Results returns the cached final result of a session.
func (e *Engine) Results(sessionID string) (types.Outcome, error) {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if !sess.resultsReady {
		return nil, ErrResultsNotReady
	}
	return cloneOutcome(sess.finalResult), nil
}

// Standings ranks the current votes whether or not voting is complete.
func (e *Engine) Standings(sessionID string) (types.Outcome, error) {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return ComputeOutcome(sess.Candidates, sess.Votes), nil
}

// Info returns a read-only snapshot of a session.
func (e *Engine) Info(sessionID string) (types.SessionInfo, error) {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return types.SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess.info(e.opts.MaxParticipants), nil
}

// SessionOf returns the session a connection currently belongs to.
func (e *Engine) SessionOf(connID string) (string, bool) {
	id, ok := e.memberships[connID]
	return id, ok
}

// Stats returns live session and participant counts.
func (e *Engine) Stats() Stats {
	stats := Stats{Sessions: e.store.Len()}
	for _, id := range e.store.IDs() {
		sess, _ := e.store.Get(id)
		stats.Participants += len(sess.Participants)
	}
	return stats
}

// Shutdown ends every session and empties the store.
func (e *Engine) Shutdown() {
	for _, id := range e.store.IDs() {
		sess, _ := e.store.Get(id)
		e.end(sess, types.EndReasonShutdown)
	}
	e.store.Clear()
	e.memberships = make(map[string]string)
}

func (e *Engine) leave(connID, sessionID string) {
	if sess, ok := e.store.Get(sessionID); ok {
		e.removeParticipant(sess, connID)
	}
	delete(e.memberships, connID)
}

// removeParticipant drops one participant. An emptied session is kept and
// marked so the sweep can reclaim it after the grace period.
func (e *Engine) removeParticipant(sess *Session, connID string) {
	_, idx := sess.participant(connID)
	if idx < 0 {
		return
	}
	sess.Participants = append(sess.Participants[:idx], sess.Participants[idx+1:]...)
	now := e.now()
	sess.touch(now)
	e.transport.LeaveRoom(sess.ID, connID)
	metrics.ParticipantsLeft.Inc()

	if sess.IsEmpty() {
		sess.EmptySince = now
		e.logger.Info("session empty, awaiting sweep", "session_id", sess.ID)
		return
	}

	e.logger.Info("participant left", "session_id", sess.ID, "connection_id", connID, "participants", len(sess.Participants))
	progress := sess.Progress()
	e.transport.Broadcast(sess.ID, types.EventUserLeft, types.UserLeft{
		ParticipantID: connID,
		Progress:      progress,
	})
	e.transport.Broadcast(sess.ID, types.EventVotingProgress, progress)
	e.checkCompletion(sess)
}

// checkCompletion caches and broadcasts the outcome the first time every
// current participant has finished voting in this candidate generation.
func (e *Engine) checkCompletion(sess *Session) {
	if sess.resultsReady || !sess.allVoted() {
		return
	}
	sess.finalResult = ComputeOutcome(sess.Candidates, sess.Votes)
	sess.resultsReady = true

	metrics.ResultsReady.Inc()
	e.logger.Info("results ready", "session_id", sess.ID, "generation", sess.Generation)
	e.transport.Broadcast(sess.ID, types.EventResultsReady, cloneOutcome(sess.finalResult))
}

func (e *Engine) end(sess *Session, reason string) {
	e.transport.Broadcast(sess.ID, types.EventSessionEnded, types.SessionEnded{Reason: reason})
	for _, p := range sess.Participants {
		if e.memberships[p.ConnectionID] == sess.ID {
			delete(e.memberships, p.ConnectionID)
		}
	}
	e.transport.CloseRoom(sess.ID)
	e.store.Delete(sess.ID)

	metrics.SessionsEnded.WithLabelValues(reason).Inc()
	metrics.SessionsActive.Set(float64(e.store.Len()))
	e.logger.Info("session ended", "session_id", sess.ID, "reason", reason)
}

func (e *Engine) allocateID() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := e.newID()
		if err != nil {
			return "", err
		}
		if _, exists := e.store.Get(id); !exists {
			return id, nil
		}
	}
	return "", ErrSessionIDExhausted
}

func (e *Engine) normalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: must not be empty", ErrInvalidDisplayName)
	}
	if utf8.RuneCountInString(name) > e.opts.MaxDisplayNameLength {
		return "", fmt.Errorf("%w: at most %d characters", ErrInvalidDisplayName, e.opts.MaxDisplayNameLength)
	}
	return name, nil
}
