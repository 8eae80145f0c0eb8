// Package server provides the HTTP serving surface for newsdeck.
//
// The primary route serves the most recently persisted snapshot artifact;
// regeneration happens out-of-band, never inline with a request. The server
// is an Echo application with graceful, context-aware shutdown.
package server

import (
	"context"
	"embed"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsdeck/internal/config"
	"github.com/fyrsmithlabs/newsdeck/internal/snapshot"
	"github.com/fyrsmithlabs/newsdeck/internal/store"
)

//go:embed static
var staticFS embed.FS

// UserStore is the single write path the server needs: upserting the user
// record after a completed login.
type UserStore interface {
	UpsertUser(ctx context.Context, collection, email, name string) (*store.User, error)
}

// Server is the newsdeck HTTP server.
type Server struct {
	config *config.Config
	echo   *echo.Echo
	users  UserStore
	auth   *authenticator
	logger *zap.Logger
}

// HealthResponse is the JSON response for the /health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// NewServer creates the HTTP server for the cached-serving mode.
//
// The persisted snapshot artifact must already exist: there is no on-demand
// fallback generation, so a missing artifact is a startup error surfaced to
// the operator. users may be nil when login is disabled.
func NewServer(cfg *config.Config, users UserStore, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Fail fast: cached-serving mode without an artifact serves nothing.
	if _, err := snapshot.LoadArtifact(cfg.Pipeline.ArtifactPath); err != nil {
		return nil, fmt.Errorf("snapshot artifact check failed: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		config: cfg,
		echo:   e,
		users:  users,
		logger: logger,
	}

	if cfg.Auth.ClientID != "" {
		s.auth = newAuthenticator(&cfg.Auth, users, cfg.Store.Users, logger)
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.StaticFS("/static", echo.MustSubFS(staticFS, "static"))

	if s.auth != nil {
		s.echo.GET("/login", s.auth.handleLogin)
		s.echo.GET("/auth/callback", s.auth.handleCallback)
		s.echo.GET("/logout", s.auth.handleLogout)
	}
}

// handleIndex serves the latest persisted snapshot artifact verbatim.
//
// The artifact is re-read per request so an out-of-band regeneration is
// picked up without a restart. A snapshot is immutable once produced;
// serving never mutates it.
func (s *Server) handleIndex(c echo.Context) error {
	data, err := snapshot.LoadArtifact(s.config.Pipeline.ArtifactPath)
	if err != nil {
		// Artifact existed at startup; losing it mid-flight is an
		// operator-level problem, not a user-level one.
		s.logger.Error("failed to load snapshot artifact", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "snapshot unavailable")
	}
	return c.HTMLBlob(http.StatusOK, data)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server and blocks until context cancellation.
//
// Returns http.ErrServerClosed on graceful shutdown, or any other error
// encountered during startup or shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.config.Server.ShutdownTimeout.Duration(),
		)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for registering additional
// routes in tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
