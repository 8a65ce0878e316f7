// Package api exposes the agent's local control surface over HTTP. The host
// application drives synchronization, settings and exports through it.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pitchmark/pitchmark-agent/internal/remote"
	"github.com/pitchmark/pitchmark-agent/internal/store"
	"github.com/pitchmark/pitchmark-agent/internal/sync"
	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port         int
	Store        store.Store
	Orchestrator *sync.Orchestrator
	Library      *timeline.Library
	Remote       remote.Client
	Logger       *slog.Logger
	StartTime    time.Time
	DeviceID     string
	Version      string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
