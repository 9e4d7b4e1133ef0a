package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	authService       driving.AuthService
	connectionService driving.ConnectionService

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)

	// Browser-facing settings
	frontendURL    string
	secureCookies  bool
	allowedOrigins []string
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// FrontendURL prefixes callback redirect paths. Empty keeps them relative.
	FrontendURL string

	// SecureCookies marks the state cookie Secure. Off only in development.
	SecureCookies bool

	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          8080,
		Version:       "dev",
		SecureCookies: true,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	connectionService driving.ConnectionService,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		logger:            logger,
		authService:       authService,
		connectionService: connectionService,
		db:                db,
		redisClient:       redisClient,
		frontendURL:       cfg.FrontendURL,
		secureCookies:     cfg.SecureCookies,
		allowedOrigins:    cfg.AllowedOrigins,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if len(s.allowedOrigins) > 0 {
		h = NewCORSMiddleware(s.allowedOrigins).Handler(h)
	}
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Provider metadata (public)
	s.router.HandleFunc("GET /api/v1/providers", s.handleListProviders)

	// Starting a flow requires a known user
	s.router.Handle("GET /api/v1/organizations/{organizationId}/connections/{provider}/authorize",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleAuthorize)))

	// Callback is public: the browser arrives here from the provider.
	// A session, when present, must belong to the user who started the flow.
	s.router.Handle("GET /auth/{provider}/callback",
		authMiddleware.Optional(http.HandlerFunc(s.handleCallback)))

	// Status reads never fail; anonymous callers see "not connected"
	s.router.Handle("GET /api/v1/organizations/{organizationId}/connections",
		authMiddleware.Optional(http.HandlerFunc(s.handleListConnections)))
	s.router.Handle("GET /api/v1/organizations/{organizationId}/connections/{provider}",
		authMiddleware.Optional(http.HandlerFunc(s.handleGetStatus)))

	s.router.Handle("DELETE /api/v1/organizations/{organizationId}/connections/{provider}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDisconnect)))
	s.router.Handle("POST /api/v1/organizations/{organizationId}/connections/{provider}/refresh",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleRefresh)))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
