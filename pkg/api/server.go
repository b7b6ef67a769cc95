package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/bankd/internal/logger"
)

// shutdownGrace bounds how long in-flight requests may finish after Start's
// context is cancelled.
const shutdownGrace = 5 * time.Second

// Server is the admin HTTP server.
type Server struct {
	server   *http.Server
	config   APIConfig
	stopOnce sync.Once

	mu   sync.Mutex
	addr net.Addr
}

// NewServer builds a stopped server. Defaults are applied here so that a
// server built directly in tests behaves like one built from loaded
// configuration.
func NewServer(config APIConfig, deps Deps) *Server {
	config.ApplyDefaults()

	return &Server{
		server: &http.Server{
			Addr:              net.JoinHostPort(config.BindAddress, strconv.Itoa(config.Port)),
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: config.ReadTimeout,
			ReadTimeout:       config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
		config: config,
	}
}

// Start listens and serves until ctx is cancelled or serving fails. A port
// that is already taken is reported before anything is served. Returns nil
// after a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("API server listen on %s: %w", s.server.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	logger.Info("API server listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- s.server.Serve(ln) }()

	select {
	case <-ctx.Done():
		// ctx is already cancelled and would abort the shutdown at once.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. Safe to call more than once and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if err = s.server.Shutdown(ctx); err != nil {
			logger.Error("API server shutdown error", logger.KeyError, err)
			err = fmt.Errorf("API server shutdown: %w", err)
			return
		}
		logger.Info("API server stopped")
	})
	return err
}

// Addr returns the listening address, or nil before Start has bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.config.Port
}
