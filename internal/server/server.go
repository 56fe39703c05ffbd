// Package server provides the HTTP API for ratchet.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spannerworks/ratchet/internal/config"
	"github.com/spannerworks/ratchet/internal/db"
	"github.com/spannerworks/ratchet/internal/service"
)

// Config holds the server configuration.
type Config struct {
	// Host is the address to bind to (default "localhost").
	Host string

	// Port is the TCP port to listen on (default 18880).
	Port int

	// DB is the open database handle.
	DB *db.DB

	// App carries the application settings the service layer needs
	// (metrics window, bottleneck multiplier). Defaults apply when nil.
	App *config.Config

	// Logger for server events (optional).
	Logger *zap.Logger
}

// Server exposes the inspection workflow over HTTP. Auth is upstream: the
// actor triple arrives in the X-User-ID, X-Role and X-Shop-ID headers and
// is trusted as-is.
type Server struct {
	config     Config
	httpServer *http.Server
	router     *http.ServeMux
	service    *service.InspectionService
	logger     *zap.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	defaults := config.DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = defaults.Server.Port
	}
	if cfg.Host == "" {
		cfg.Host = defaults.Server.Host
	}
	if cfg.App == nil {
		cfg.App = defaults
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:  cfg,
		router:  http.NewServeMux(),
		service: service.NewInspectionService(cfg.DB, cfg.App, logger),
		logger:  logger,
	}

	s.setupRoutes()

	return s, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Create the listener first so port 0 resolves to a real address.
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("server listening", zap.String("addr", listener.Addr().String()))

	return s.httpServer.Serve(listener)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
