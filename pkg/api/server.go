package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/marmos91/bytebeam/internal/logger"
	"github.com/marmos91/bytebeam/pkg/config"
	"github.com/marmos91/bytebeam/pkg/relay"
)

// Server is the relay's HTTP front.
//
// The server is created stopped; Start begins serving and blocks until
// the context is cancelled or serving fails. Shutdown is graceful within
// the configured timeout, so in-flight transfers get a chance to drain.
type Server struct {
	server       *http.Server
	config       config.ServerConfig
	shutdownOnce sync.Once
}

// NewServer creates the HTTP server over a ticket registry.
//
// Parameters:
//   - cfg: listener configuration (address, port, timeouts, body cap)
//   - registry: the ticket registry the handlers operate on
//   - version: software version reported in the Server header
func NewServer(cfg config.ServerConfig, registry *relay.Registry, version string) *Server {
	router := NewRouter(NewHandler(registry), version, cfg.MaxBodySize.Int64())

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler: router,
		// No ReadTimeout/WriteTimeout: uploads and downloads are
		// long-lived streams paced by the relay itself.
	}

	return &Server{
		server: server,
		config: cfg,
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
// or an error occurs. Cancellation triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", s.server.Addr)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Server shutdown signal received")
		// Use a fresh context: the cancelled one would abort the
		// graceful drain immediately
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("Server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			logger.Error("Server shutdown error", logger.Err(err))
		} else {
			logger.Info("Server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.config.Port
}
