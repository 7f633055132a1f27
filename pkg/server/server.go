// Package server exposes an Engine over a thin chi-based HTTP API: collection
// lifecycle, document insert/delete, and vector query. A JWT bearer token
// carrying a "tenant" claim scopes documents and queries through a
// tenant.Wrapper; requests without a recognized token reach the raw engine
// only when the server is configured with AllowAnonymous.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/loomdb/loomdb/pkg/engine"
)

// Config holds HTTP server configuration.
type Config struct {
	Address string
	Port    int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// JWTSecret verifies bearer tokens' HMAC signature. Required unless
	// AllowAnonymous is true and no tenant scoping is ever needed.
	JWTSecret []byte

	// AllowAnonymous lets requests without a valid bearer token fall
	// through to the raw, unscoped engine instead of being rejected.
	AllowAnonymous bool
}

// DefaultConfig returns a usable development configuration.
func DefaultConfig() Config {
	return Config{
		Address:      "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Server is the HTTP API in front of an *engine.Engine.
type Server struct {
	config Config
	engine *engine.Engine

	httpServer *http.Server
	listener   net.Listener
	started    time.Time
}

// New builds a Server. It does not start listening; call Start for that.
func New(e *engine.Engine, config Config) *Server {
	return &Server{config: config, engine: e}
}

// Router builds the chi handler tree. Exposed so tests can exercise routes
// without binding a socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.With(s.authenticate).Route("/collections", func(r chi.Router) {
		r.Post("/", s.handleCreateCollection)
		r.Get("/", s.handleListCollections)
		r.Route("/{name}", func(r chi.Router) {
			r.Delete("/", s.handleDropCollection)
			r.Post("/documents", s.handleInsertDocuments)
			r.Delete("/documents", s.handleDeleteDocuments)
			r.Post("/query", s.handleQuery)
			r.Get("/snapshot", s.handleExportSnapshot)
			r.Post("/snapshot", s.handleImportSnapshot)
		})
	})

	return r
}

// Start binds the configured address and begins serving in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.started = time.Now()

	s.httpServer = &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("server: serve error: %v\n", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server's bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
