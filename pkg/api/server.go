package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// Server serves the HTTP surface with graceful shutdown.
type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// NewServer creates a server for the given handler set.
func NewServer(listenAddr string, handler http.Handler, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Server{
		server: &http.Server{
			Addr:         listenAddr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Start serves requests until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("http server shutdown error: %w", err)
			logger.Error("http server shutdown error", "error", err)
		} else {
			logger.Info("http server stopped gracefully")
		}
	})
	return shutdownErr
}
