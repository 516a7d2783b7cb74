package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/keywarden/keywarden/internal/handler"
	"github.com/keywarden/keywarden/internal/metrics"
	"github.com/keywarden/keywarden/internal/openapi"
	"github.com/keywarden/keywarden/internal/server/middleware"
	"github.com/keywarden/keywarden/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	APIKeyHeader    string
	Version         string

	// RateLimit is requests per minute per client IP on /api; 0 disables it.
	RateLimit int

	// TrustedProxies may set the client address through X-Forwarded-For or
	// X-Real-IP. Empty means the connection peer is always the client.
	TrustedProxies []netip.Prefix
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20,
		APIKeyHeader:    middleware.DefaultAPIKeyHeader,
		Version:         "dev",
	}
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps are the services the server routes to.
type Deps struct {
	Auth    *service.AuthService
	Keys    *service.KeyService
	Audit   *service.AuditService
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Checks are pinged by /readyz, keyed by name.
	Checks map[string]Pinger

	// LimitCounter shares rate-limit counts between instances. Nil keeps
	// them in process.
	LimitCounter httprate.LimitCounter
}

// Server is the top-level HTTP server for keywarden. It owns the Chi router
// and the services behind it.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP(s.cfg.TrustedProxies))
	r.Use(middleware.Logger(s.logger, s.deps.Metrics))
	r.Use(middleware.Recoverer(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", s.cfg.APIKeyHeader, "X-Requested-With", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// --- Health, metrics and docs (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", s.deps.Metrics.Handler())

	doc := openapi.GenerateSpec(s.cfg.Version, "/", s.cfg.APIKeyHeader)
	r.Get("/openapi.json", handler.NewOpenAPIHandler(doc).ServeSpec)

	// --- API routes ---
	keys := handler.NewKeysHandler(s.deps.Keys, s.logger)
	audit := handler.NewAuditHandler(s.deps.Audit, s.logger)

	r.Route("/api", func(r chi.Router) {
		// Audit wraps everything under /api, unknown routes included, so
		// rejected, throttled and failed requests are recorded with their
		// final status.
		r.Use(middleware.Audit(s.deps.Audit))
		r.Use(middleware.Recoverer(s.logger))
		r.NotFound(handler.NotFound)
		r.MethodNotAllowed(handler.MethodNotAllowed)
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(s.cfg.RateLimit, s.deps.LimitCounter, s.logger))
		}
		if s.cfg.MaxBodySize > 0 {
			r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
		}

		r.Route("/v1", func(r chi.Router) {
			r.Use(middleware.Authenticate(s.deps.Auth, s.cfg.APIKeyHeader, s.logger))

			r.Post("/keys/create", keys.Create)
			r.Post("/keys/create/admin", keys.CreateAdmin)
			r.Delete("/keys/delete/{keyId}", keys.Delete)
			r.Get("/keys", keys.List)
			r.Get("/keys/me", keys.Me)
			r.Get("/audit", audit.List)
		})
	})

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests (and their audit writes) before returning.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
