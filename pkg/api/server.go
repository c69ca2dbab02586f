package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/pkg/api/handlers"
	"github.com/marmos91/ndd/pkg/minor"
)

// Server provides the HTTP status API.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
//   - GET /metrics: Prometheus metrics
//   - GET /api/v1/minors: Open minors
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server in a stopped state. Call Start
// to begin serving requests.
//
// Defaults are applied here so the server works when created directly
// (tests). This is idempotent with the defaults applied during config
// loading.
//
// Parameters:
//   - config: Server configuration (port, timeouts)
//   - registry: Minor table (may be nil)
//   - status: ND server status for the readiness probe (may be nil)
//   - version: Build version reported by the liveness probe
func NewServer(config APIConfig, registry *minor.Registry, status handlers.ServerStatus, version string) *Server {
	config.ApplyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewRouter(registry, status, version),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}
}

// Start starts the API HTTP server and blocks until the context is
// cancelled or an error occurs. Cancellation triggers graceful shutdown.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the server fails to start or shutdown encounters an error
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		logger.Debug("API endpoints available",
			"health", fmt.Sprintf("http://localhost:%d/health", s.config.Port),
			"ready", fmt.Sprintf("http://localhost:%d/health/ready", s.config.Port),
			"minors", fmt.Sprintf("http://localhost:%d/api/v1/minors", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// The cancelled ctx would abort shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server. It is safe to call
// multiple times and concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}

// Handler returns the router, for in-process use.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
