package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"dinepick/internal/logger"
	"dinepick/internal/session"
	"dinepick/pkg/types"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// statusFor maps an engine or provider error to an HTTP status.
func statusFor(code string) int {
	switch code {
	case session.CodeSessionNotFound:
		return http.StatusNotFound
	case session.CodeSessionFull, session.CodeResultsNotReady:
		return http.StatusConflict
	case session.CodeValidation, session.CodeNotParticipant:
		return http.StatusBadRequest
	case session.CodeUpstreamProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an ErrorResponse with its mapped status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := session.Code(err)
	status := statusFor(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context(), s.logger).Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	s.sendError(w, r, status, code, message)
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.writeJSON(w, r, status, ErrorResponse{
		Error:   http.StatusText(status),
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context(), s.logger).Debug("failed to write response", "error", err)
	}
}

// decodeBody reads an optional JSON body into v and validates it.
// An empty body leaves v at its zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", types.ErrInvalidPayload, err)
	}
	return types.Validate(v)
}
