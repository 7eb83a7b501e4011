package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"dinepick/internal/api"
	"dinepick/internal/catalog"
	"dinepick/internal/config"
	"dinepick/internal/hub"
	"dinepick/internal/router"
	"dinepick/internal/session"
	"dinepick/internal/websocket"
	"dinepick/pkg/database"
)

// Application coordinates all system components
// Component initialization follows strict dependency order:
// Catalog → Registry → Engine → Hub → Router → WebSocket → API → HTTP
type Application struct {
	config     *config.Config
	logger     *slog.Logger
	catalog    *catalog.Cached
	registry   *websocket.Registry
	hub        *hub.Hub
	router     *router.Router
	apiServer  *api.Server
	httpServer *http.Server

	mu   sync.Mutex
	addr net.Addr
}

// NewApplication builds every component. Nothing runs until Serve or Run.
func NewApplication(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Candidate provider (the only component holding external resources)
	provider, err := catalog.New(ctx, catalog.Options{
		Driver: cfg.Catalog.Driver,
		Database: &database.Config{
			Path:            cfg.Catalog.Path,
			MaxConnections:  cfg.Catalog.MaxConnections,
			ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
			ConnMaxIdleTime: database.DefaultConfig().ConnMaxIdleTime,
		},
		CacheSize: cfg.Catalog.CacheSize,
		CacheTTL:  cfg.Catalog.CacheTTL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	// STEP 2: Realtime transport
	registry := websocket.NewRegistry(logger)

	// STEP 3: Session engine owned by the hub loop
	engine := session.NewEngine(session.NewStore(), registry, session.Options{
		MaxParticipants:      cfg.Session.MaxParticipants,
		MaxDisplayNameLength: cfg.Session.MaxDisplayNameLength,
		InactivityTimeout:    cfg.Session.InactivityTimeout,
		EmptySessionGrace:    cfg.Session.EmptyGrace,
		StrictVoting:         cfg.Session.StrictVoting,
	}, logger)
	sessionHub := hub.NewHub(engine, cfg.Session.SweepInterval, logger)

	// STEP 4: Inbound event router
	eventRouter := router.NewRouter(sessionHub, registry, cfg.WebSocket.EventsPerMinute, logger)

	// STEP 5: WebSocket handler and API server
	wsHandler := websocket.NewHandler(registry, eventRouter, sessionHub, websocket.HandlerConfig{
		PingInterval:    cfg.WebSocket.PingInterval,
		ReadTimeout:     cfg.WebSocket.ReadTimeout,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		SendBufferSize:  cfg.WebSocket.BufferSize,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
	}, logger, eventRouter)

	apiServer := api.NewServer(sessionHub, provider, registry, wsHandler, api.Options{
		PublicURL:      cfg.HTTP.PublicURL,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Profile:        cfg.HTTP.Profile,
		Version:        version,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           apiServer,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		logger:     logger.With("component", "app"),
		catalog:    provider,
		registry:   registry,
		hub:        sessionHub,
		router:     eventRouter,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.apiServer
}

// Run listens on the configured address and serves until ctx ends.
func (app *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = app.catalog.Close()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ctx, ln)
}

// Serve runs the hub and HTTP server on ln until ctx ends, then shuts down
// in reverse dependency order: HTTP → sockets → Hub → Catalog.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	app.mu.Lock()
	app.addr = ln.Addr()
	app.mu.Unlock()

	// The hub outlives ctx so that shutdown can still end sessions cleanly.
	if err := app.hub.Start(context.Background()); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start hub: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.router.Run(gctx)
	})

	g.Go(func() error {
		app.logger.Info("listening", "addr", ln.Addr().String())
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return app.shutdown()
	})

	err := g.Wait()
	if closeErr := app.catalog.Close(); closeErr != nil {
		app.logger.Warn("catalog close error", "error", closeErr)
	}
	app.logger.Info("shutdown complete")
	return err
}

func (app *Application) shutdown() error {
	app.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), app.config.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}

	// FUNCTIONAL DISCOVERY: Stop ends every session with reason "shutdown"
	// before the sockets go away, so clients are told why
	if err := app.hub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	if n := app.registry.CloseAll(app.config.WebSocket.WriteTimeout); n > 0 {
		app.logger.Info("closed realtime connections", "count", n)
	}
	return errors.Join(errs...)
}

// Addr returns the listening address once Serve has started.
func (app *Application) Addr() net.Addr {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.addr
}
