package types

import "errors"

// ARCHITECTURAL DISCOVERY: Every payload rejection wraps ErrInvalidPayload so
// callers can map it to a single validation code.
var (
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrEmptyCandidateID     = errors.New("candidate id must not be empty")
	ErrDuplicateCandidateID = errors.New("candidate ids must be unique")
)
