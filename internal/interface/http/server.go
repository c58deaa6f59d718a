package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/equilibrio-app/equilibrio-engine/internal/application/progression"
	"github.com/equilibrio-app/equilibrio-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HTTP SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// ServiceTokenHashes are bcrypt hashes of accepted bearer tokens.
	// Empty disables authentication.
	ServiceTokenHashes []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Address returns the host:port to bind.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Dependencies are the collaborators the server exposes.
type Dependencies struct {
	Facade         *progression.Facade
	HealthCheckers map[string]HealthChecker
	Logger         *logger.Logger
}

// Server is the HTTP interface of the progression engine.
type Server struct {
	config Config
	http   *http.Server
	log    *logger.Logger
}

// NewServer builds the server with routes and middleware wired.
func NewServer(config Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("http_server"))

	handler := NewProgressionHandler(deps.Facade, log)
	health := NewHealthHandler(deps.HealthCheckers)
	auth := NewServiceTokenAuth(config.ServiceTokenHashes)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Health)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/progression/activities/complete", handler.CompleteActivity)
	api.HandleFunc("POST /api/v1/progression/activities/uncomplete", handler.UncompleteActivity)
	api.HandleFunc("POST /api/v1/progression/days/complete", handler.CompleteDay)
	api.HandleFunc("GET /api/v1/progression/tracks/{slug}/days/{day}/content", handler.GetDayContent)
	api.HandleFunc("GET /api/v1/progression/tracks/{slug}/state", handler.GetTrackState)
	mux.Handle("/api/v1/progression/", auth.Middleware(api))

	var root http.Handler = mux
	root = LoggingMiddleware(log)(root)
	root = RecoveryMiddleware(log)(root)
	root = RequestIDMiddleware(root)

	return &Server{
		config: config,
		log:    log,
		http: &http.Server{
			Addr:         config.Address(),
			Handler:      root,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Handler returns the root handler with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", logger.String("address", s.config.Address()))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}
