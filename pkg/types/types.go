package types

import (
	"encoding/json"
	"time"
)

// Inbound realtime events sent by clients.
const (
	EventCreateSession = "createSession"
	EventJoinSession   = "joinSession"
	EventVote          = "vote"
	EventLeaveSession  = "leaveSession"
)

// Outbound realtime events emitted by the server.
// FUNCTIONAL DISCOVERY: sessionCreated, sessionState and error are unicast to
// one connection; every other event is broadcast to the session room.
const (
	EventSessionCreated    = "sessionCreated"
	EventSessionState      = "sessionState"
	EventUserJoined        = "userJoined"
	EventCandidatesUpdated = "candidatesUpdated"
	EventVoteUpdate        = "voteUpdate"
	EventVotingProgress    = "votingProgress"
	EventResultsReady      = "resultsReady"
	EventUserLeft          = "userLeft"
	EventSessionEnded      = "sessionEnded"
	EventError             = "error"
)

// Reasons carried by a sessionEnded event.
const (
	EndReasonInactive = "inactive"
	EndReasonEnded    = "ended"
	EndReasonShutdown = "shutdown"
)

// Envelope is the wire shape of every inbound realtime frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is the wire shape of every outbound realtime frame.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Candidate is one restaurant option offered for voting.
// ARCHITECTURAL DISCOVERY: Only ID is interpreted by the engine; every other
// field is carried verbatim to clients.
type Candidate struct {
	ID       string   `json:"id" validate:"required,max=128"`
	Name     string   `json:"name" validate:"required,max=200"`
	Location string   `json:"location,omitempty" validate:"max=200"`
	Cuisines []string `json:"cuisines,omitempty" validate:"max=20,dive,max=50"`
	Image    string   `json:"image,omitempty" validate:"omitempty,url"`
	URL      string   `json:"url,omitempty" validate:"omitempty,url"`
	Rating   float64  `json:"rating,omitempty" validate:"gte=0,lte=5"`
	Price    string   `json:"price,omitempty" validate:"max=20"`
	Phone    string   `json:"phone,omitempty" validate:"max=50"`
	Address  string   `json:"address,omitempty" validate:"max=300"`
}

// CandidateQuery selects candidates from a provider.
type CandidateQuery struct {
	Types    []string `json:"types" validate:"max=20,dive,max=50"`
	Location string   `json:"location" validate:"max=200"`
}

// Tally counts the likes and dislikes of one candidate.
type Tally struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Score is likes minus dislikes.
func (t Tally) Score() int {
	return t.Likes - t.Dislikes
}

// Progress reports how many participants have voted on every candidate.
type Progress struct {
	TotalUsers     int      `json:"totalUsers"`
	VotedUsers     int      `json:"votedUsers"`
	VotedUsersList []string `json:"votedUsersList"`
}

// Participant is the public view of a session member.
type Participant struct {
	ID                 string `json:"id"`
	DisplayName        string `json:"displayName"`
	HasCompletedVoting bool   `json:"hasCompletedVoting"`
}

// OutcomeEntry is one ranked candidate with its tally and score.
type OutcomeEntry struct {
	Candidate
	Votes Tally `json:"votes"`
	Score int   `json:"score"`
}

// Outcome is the ranked list of candidates, highest score first.
type Outcome []OutcomeEntry

// Inbound payloads

type CreateSessionRequest struct {
	DisplayName string `json:"displayName" validate:"required"`
}

type JoinSessionRequest struct {
	SessionID   string `json:"sessionId" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"required"`
}

// VoteRequest accepts the choice as either "liked" or the older "vote" field.
type VoteRequest struct {
	SessionID   string `json:"sessionId" validate:"required,max=64"`
	CandidateID string `json:"candidateId" validate:"required,max=128"`
	Liked       *bool  `json:"liked" validate:"required_without=Vote"`
	Vote        *bool  `json:"vote,omitempty"`
}

// Choice returns the vote direction, preferring Liked when both are set.
func (r VoteRequest) Choice() bool {
	if r.Liked != nil {
		return *r.Liked
	}
	if r.Vote != nil {
		return *r.Vote
	}
	return false
}

type LeaveSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
}

// Outbound payloads

type SessionCreated struct {
	SessionID string `json:"sessionId"`
	Progress
}

type SessionState struct {
	SessionID    string           `json:"sessionId"`
	Participants []Participant    `json:"participants"`
	Candidates   []Candidate      `json:"candidates"`
	Votes        map[string]Tally `json:"votes"`
	ResultsReady bool             `json:"resultsReady"`
	Progress
}

type UserJoined struct {
	Participant Participant `json:"participant"`
	Progress
}

type CandidatesUpdated struct {
	Candidates []Candidate `json:"candidates"`
}

type VoteUpdate struct {
	CandidateID string `json:"candidateId"`
	Tally       Tally  `json:"tally"`
}

type UserLeft struct {
	ParticipantID string `json:"participantId"`
	Progress
}

type SessionEnded struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// HTTP payloads

// SetCandidatesRequest either queries the provider or supplies candidates directly.
type SetCandidatesRequest struct {
	Types      []string    `json:"types" validate:"max=20,dive,max=50"`
	Location   string      `json:"location" validate:"max=200"`
	Candidates []Candidate `json:"candidates" validate:"omitempty,max=200,dive"`
}

// Query returns the provider query part of the request.
func (r SetCandidatesRequest) Query() CandidateQuery {
	return CandidateQuery{Types: r.Types, Location: r.Location}
}

// SessionInfo is a read-only snapshot of a session.
type SessionInfo struct {
	ID             string        `json:"id"`
	Participants   []Participant `json:"participants"`
	IsFull         bool          `json:"isFull"`
	CandidateCount int           `json:"candidateCount"`
	ResultsReady   bool          `json:"resultsReady"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	Progress
}
