// Package web serves the optional localhost status API. It is read-only
// and bound to whatever address daemon.status_addr names, typically a
// loopback port.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	logger *slog.Logger
	server *http.Server
}

// NewServer builds the status server. status provides the live tracker
// view; journal may be nil when error persistence is disabled.
func NewServer(addr string, status StatusSource, journal ErrorSource, logger *slog.Logger) *Server {
	handler := NewHandler(status, journal)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	handler.Routes(router)

	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start blocks serving requests until Shutdown is called. A closed
// server returns nil rather than http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("status server shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.server.Addr
}
