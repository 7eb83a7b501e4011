package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"dinepick/internal/session"
	"dinepick/pkg/interfaces"
	"dinepick/pkg/types"
)

// qrSize is the edge length of join link QR codes in pixels.
const qrSize = 256

// CandidatesResponse acknowledges a candidate list attached to a session.
type CandidatesResponse struct {
	SessionID  string            `json:"sessionId"`
	Count      int               `json:"count"`
	Candidates []types.Candidate `json:"candidates"`
}

// ResultsResponse carries a ranked outcome.
type ResultsResponse struct {
	SessionID string        `json:"sessionId"`
	Ready     bool          `json:"ready"`
	Code      string        `json:"code,omitempty"`
	Results   types.Outcome `json:"results,omitempty"`
}

func sessionID(r *http.Request) string {
	return httprouter.ParamsFromContext(r.Context()).ByName("id")
}

// POST /api/candidates/search and POST /api/restaurants
func (s *Server) searchCandidates(w http.ResponseWriter, r *http.Request) {
	var query types.CandidateQuery
	if err := decodeBody(w, r, &query); err != nil {
		s.fail(w, r, err)
		return
	}

	candidates, err := s.provider.Search(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if candidates == nil {
		candidates = []types.Candidate{}
	}
	s.writeJSON(w, r, http.StatusOK, candidates)
}

// POST /api/sessions/:id/candidates
func (s *Server) setCandidates(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)

	var req types.SetCandidatesRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	candidates := req.Candidates
	if len(candidates) > 0 {
		if err := types.ValidateCandidates(candidates); err != nil {
			s.fail(w, r, err)
			return
		}
	} else {
		// Fail fast on an unknown session before paying for a provider call.
		if err := s.executor.Do(r.Context(), func(e *session.Engine) error {
			_, err := e.Info(id)
			return err
		}); err != nil {
			s.fail(w, r, err)
			return
		}

		var err error
		candidates, err = s.provider.Search(r.Context(), req.Query())
		if err != nil {
			s.fail(w, r, err)
			return
		}
	}

	if err := s.executor.Do(r.Context(), func(e *session.Engine) error {
		return e.SetCandidates(id, candidates)
	}); err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, CandidatesResponse{
		SessionID:  id,
		Count:      len(candidates),
		Candidates: candidates,
	})
}

// GET /api/sessions/:id
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	var info types.SessionInfo
	if err := s.executor.Do(r.Context(), func(e *session.Engine) error {
		var err error
		info, err = e.Info(sessionID(r))
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, info)
}

// DELETE /api/sessions/:id
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if err := s.executor.Do(r.Context(), func(e *session.Engine) error {
		return e.EndSession(id, types.EndReasonEnded)
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("session ended via API", "session_id", id)
	s.writeJSON(w, r, http.StatusOK, map[string]string{"message": "session ended", "sessionId": id})
}

// GET /api/sessions/:id/results returns the cached final result only.
func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	var outcome types.Outcome
	err := s.executor.Do(r.Context(), func(e *session.Engine) error {
		var err error
		outcome, err = e.Results(id)
		return err
	})

	switch session.Code(err) {
	case "":
		s.writeJSON(w, r, http.StatusOK, ResultsResponse{SessionID: id, Ready: true, Results: outcome})
	case session.CodeResultsNotReady:
		s.writeJSON(w, r, http.StatusConflict, ResultsResponse{SessionID: id, Ready: false, Code: session.CodeResultsNotReady})
	default:
		s.fail(w, r, err)
	}
}

// GET /api/sessions/:id/standings ranks the votes cast so far.
func (s *Server) standings(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	var resp ResultsResponse
	if err := s.executor.Do(r.Context(), func(e *session.Engine) error {
		outcome, err := e.Standings(id)
		if err != nil {
			return err
		}
		info, err := e.Info(id)
		if err != nil {
			return err
		}
		resp = ResultsResponse{SessionID: id, Ready: info.ResultsReady, Results: outcome}
		return nil
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

// GET /api/results?session=<id> answers with the bare standings array.
func (s *Server) legacyResults(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		s.sendError(w, r, http.StatusBadRequest, session.CodeValidation, "session query parameter is required")
		return
	}

	var outcome types.Outcome
	if err := s.executor.Do(r.Context(), func(e *session.Engine) error {
		var err error
		outcome, err = e.Standings(id)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	if outcome == nil {
		outcome = types.Outcome{}
	}
	s.writeJSON(w, r, http.StatusOK, outcome)
}

// GET /api/sessions/:id/qr renders the join link as a PNG.
func (s *Server) qrCode(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if err := s.executor.Do(r.Context(), func(e *session.Engine) error {
		_, err := e.Info(id)
		return err
	}); err != nil {
		s.fail(w, r, err)
		return
	}

	link := s.joinURL(r, id)
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		s.fail(w, r, fmt.Errorf("qr generation failed: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Join-URL", link)
	_, _ = w.Write(png)
}

// joinURL builds <base>/join?session=<id>, deriving the base from the request
// when no public URL is configured.
func (s *Server) joinURL(r *http.Request, id string) string {
	base := strings.TrimSuffix(s.opts.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/join?session=" + url.QueryEscape(id)
}

// HealthResponse reports component status.
type HealthResponse struct {
	Status       string         `json:"status"`
	Timestamp    time.Time      `json:"timestamp"`
	Version      string         `json:"version,omitempty"`
	Uptime       string         `json:"uptime"`
	Hub          string         `json:"hub"`
	Catalog      string         `json:"catalog"`
	Sessions     int            `json:"sessions"`
	Participants int            `json:"participants"`
	Connections  map[string]int `json:"connections"`
}

// GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.opts.Version,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Hub:       "healthy",
		Catalog:   "healthy",
	}

	var stats session.Stats
	if err := s.executor.Do(ctx, func(e *session.Engine) error {
		stats = e.Stats()
		return nil
	}); err != nil {
		resp.Status = "unhealthy"
		resp.Hub = "error: " + err.Error()
	}
	resp.Sessions = stats.Sessions
	resp.Participants = stats.Participants

	if hc, ok := s.provider.(interfaces.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Catalog = "error: " + err.Error()
		}
	}

	if s.stats != nil {
		resp.Connections = s.stats.GetStats()
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, status, resp)
}
