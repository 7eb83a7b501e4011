package session

import (
	"errors"
	"fmt"

	"dinepick/pkg/interfaces"
	"dinepick/pkg/types"
)

// Session protocol error types
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionFull        = errors.New("session is full")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidDisplayName = fmt.Errorf("%w: invalid display name", ErrValidation)
	ErrUnknownCandidate   = fmt.Errorf("%w: unknown candidate", ErrValidation)
	ErrNotParticipant     = errors.New("connection is not a participant of this session")
	ErrResultsNotReady    = errors.New("results are not ready")
	ErrSessionIDExhausted = errors.New("could not allocate a unique session id")
	ErrSessionExists      = errors.New("session id already in use")
)

// Wire error codes shared by the realtime and HTTP surfaces.
const (
	CodeSessionNotFound  = "session_not_found"
	CodeSessionFull      = "session_full"
	CodeValidation       = "validation_error"
	CodeUpstreamProvider = "upstream_provider_error"
	CodeResultsNotReady  = "results_not_ready"
	CodeNotParticipant   = "not_participant"
	CodeInternal         = "internal_error"
)

// Code maps an error to its stable wire code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrSessionFull):
		return CodeSessionFull
	case errors.Is(err, ErrValidation), errors.Is(err, types.ErrInvalidPayload):
		return CodeValidation
	case errors.Is(err, interfaces.ErrUpstreamProvider):
		return CodeUpstreamProvider
	case errors.Is(err, ErrResultsNotReady):
		return CodeResultsNotReady
	case errors.Is(err, ErrNotParticipant):
		return CodeNotParticipant
	default:
		return CodeInternal
	}
}
