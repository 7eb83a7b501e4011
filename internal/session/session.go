package session

import (
	"slices"
	"time"

	"dinepick/pkg/types"
)

// Participant is one member of a session, bound to a single connection.
type Participant struct {
	ConnectionID string
	DisplayName  string
	JoinedAt     time.Time

	voted map[string]struct{}
}

func newParticipant(connID, displayName string, now time.Time) *Participant {
	return &Participant{
		ConnectionID: connID,
		DisplayName:  displayName,
		JoinedAt:     now,
		voted:        make(map[string]struct{}),
	}
}

// HasVoted reports whether the participant has voted on a candidate.
func (p *Participant) HasVoted(candidateID string) bool {
	_, ok := p.voted[candidateID]
	return ok
}

// VotedCount returns how many distinct candidates the participant voted on.
func (p *Participant) VotedCount() int {
	return len(p.voted)
}

// completed is true once the participant has voted on every current candidate.
// An empty candidate list never counts as completed.
func (p *Participant) completed(candidates []types.Candidate) bool {
	if len(candidates) == 0 {
		return false
	}
	for i := range candidates {
		if _, ok := p.voted[candidates[i].ID]; !ok {
			return false
		}
	}
	return true
}

// Session is one shared voting round.
// TECHNICAL DISCOVERY: Session carries no lock; it is only touched from the
// hub goroutine that owns the Engine.
type Session struct {
	ID             string
	Participants   []*Participant
	Candidates     []types.Candidate
	Votes          map[string]types.Tally
	CreatedAt      time.Time
	LastActivityAt time.Time

	// EmptySince is set when the last participant leaves and cleared on rejoin.
	EmptySince time.Time

	// Generation increments on every candidate replacement.
	Generation int

	finalResult  types.Outcome
	resultsReady bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:             id,
		Votes:          make(map[string]types.Tally),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func (s *Session) touch(now time.Time) {
	s.LastActivityAt = now
}

// participant returns the participant bound to connID and its index.
func (s *Session) participant(connID string) (*Participant, int) {
	for i, p := range s.Participants {
		if p.ConnectionID == connID {
			return p, i
		}
	}
	return nil, -1
}

func (s *Session) hasCandidate(candidateID string) bool {
	for i := range s.Candidates {
		if s.Candidates[i].ID == candidateID {
			return true
		}
	}
	return false
}

// Progress reports voting completion across current participants.
func (s *Session) Progress() types.Progress {
	progress := types.Progress{
		TotalUsers:     len(s.Participants),
		VotedUsersList: []string{},
	}
	for _, p := range s.Participants {
		if p.completed(s.Candidates) {
			progress.VotedUsers++
			progress.VotedUsersList = append(progress.VotedUsersList, p.DisplayName)
		}
	}
	return progress
}

// allVoted is the completion condition: at least one participant and every
// participant has voted on every candidate.
func (s *Session) allVoted() bool {
	if len(s.Participants) == 0 {
		return false
	}
	for _, p := range s.Participants {
		if !p.completed(s.Candidates) {
			return false
		}
	}
	return true
}

// ResultsReady reports whether the final result has been cached.
func (s *Session) ResultsReady() bool {
	return s.resultsReady
}

// IsEmpty reports whether the session has no participants.
func (s *Session) IsEmpty() bool {
	return len(s.Participants) == 0
}

// replaceCandidates swaps the candidate set and clears all vote state.
func (s *Session) replaceCandidates(candidates []types.Candidate) {
	s.Candidates = cloneCandidates(candidates)
	s.Votes = make(map[string]types.Tally)
	for _, p := range s.Participants {
		p.voted = make(map[string]struct{})
	}
	s.finalResult = nil
	s.resultsReady = false
	s.Generation++
}

func (s *Session) participantView(p *Participant) types.Participant {
	return types.Participant{
		ID:                 p.ConnectionID,
		DisplayName:        p.DisplayName,
		HasCompletedVoting: p.completed(s.Candidates),
	}
}

func (s *Session) participantViews() []types.Participant {
	views := make([]types.Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		views = append(views, s.participantView(p))
	}
	return views
}

func (s *Session) votesSnapshot() map[string]types.Tally {
	votes := make(map[string]types.Tally, len(s.Votes))
	for id, tally := range s.Votes {
		votes[id] = tally
	}
	return votes
}

func (s *Session) state() types.SessionState {
	return types.SessionState{
		SessionID:    s.ID,
		Participants: s.participantViews(),
		Candidates:   cloneCandidates(s.Candidates),
		Votes:        s.votesSnapshot(),
		ResultsReady: s.resultsReady,
		Progress:     s.Progress(),
	}
}

func (s *Session) info(maxParticipants int) types.SessionInfo {
	return types.SessionInfo{
		ID:             s.ID,
		Participants:   s.participantViews(),
		IsFull:         len(s.Participants) >= maxParticipants,
		CandidateCount: len(s.Candidates),
		ResultsReady:   s.resultsReady,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		Progress:       s.Progress(),
	}
}

func cloneCandidates(candidates []types.Candidate) []types.Candidate {
	out := make([]types.Candidate, len(candidates))
	for i, c := range candidates {
		c.Cuisines = slices.Clone(c.Cuisines)
		out[i] = c
	}
	return out
}
