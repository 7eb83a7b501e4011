package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dinepick/internal/hub"
	"dinepick/internal/metrics"
	"dinepick/pkg/interfaces"
)

// Executor runs a command on the session hub.
type Executor interface {
	Do(ctx context.Context, fn hub.Command) error
}

// StatsSource reports realtime connection counts.
type StatsSource interface {
	GetStats() map[string]int
}

// Options tunes the HTTP surface.
type Options struct {
	// PublicURL is the base of join links; empty derives it from the request.
	PublicURL      string
	AllowedOrigins string
	Profile        bool
	Version        string
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// Every session read or write is a hub command; provider calls run on the
// request goroutine so the hub never waits on I/O
type Server struct {
	executor  Executor
	provider  interfaces.CandidateProvider
	stats     StatsSource
	websocket http.Handler
	opts      Options
	logger    *slog.Logger
	router    *httprouter.Router
	startedAt time.Time
}

// NewServer wires the routes. ws may be nil when no realtime surface is mounted.
func NewServer(executor Executor, provider interfaces.CandidateProvider, stats StatsSource, ws http.Handler, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AllowedOrigins == "" {
		opts.AllowedOrigins = "*"
	}
	s := &Server{
		executor:  executor,
		provider:  provider,
		stats:     stats,
		websocket: ws,
		opts:      opts,
		logger:    logger.With("component", "api"),
		router:    httprouter.New(),
		startedAt: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.handle(http.MethodGet, "/health", s.health)
	s.router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	s.handle(http.MethodPost, "/api/candidates/search", s.searchCandidates)
	s.handle(http.MethodPost, "/api/restaurants", s.searchCandidates)
	s.handle(http.MethodGet, "/api/results", s.legacyResults)

	s.handle(http.MethodGet, "/api/sessions/:id", s.getSession)
	s.handle(http.MethodDelete, "/api/sessions/:id", s.endSession)
	s.handle(http.MethodPost, "/api/sessions/:id/candidates", s.setCandidates)
	s.handle(http.MethodGet, "/api/sessions/:id/results", s.results)
	s.handle(http.MethodGet, "/api/sessions/:id/standings", s.standings)
	s.handle(http.MethodGet, "/api/sessions/:id/qr", s.qrCode)

	// The upgrade needs the raw ResponseWriter, so /ws skips the metrics wrapper.
	if s.websocket != nil {
		s.router.Handler(http.MethodGet, "/ws", s.websocket)
	}
	if s.opts.Profile {
		registerProfileHandlers(s.router)
	}

	s.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, r, http.StatusNotFound, "", "route not found")
	})
	s.router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, r, http.StatusMethodNotAllowed, "", "method not allowed")
	})
	s.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		s.logger.Error("handler panicked", "path", r.URL.Path, "panic", v)
		s.sendError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// handle registers h with metrics labelled by the route pattern.
func (s *Server) handle(method, route string, h http.HandlerFunc) {
	s.router.Handler(method, route, metrics.Middleware(route, h))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.requestIDMiddleware(s.router)).ServeHTTP(w, r)
}
