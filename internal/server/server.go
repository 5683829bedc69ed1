// Package server exposes the resolver over HTTP. Every reply is a JSON
// object with a single "response" field.
package server

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/hession/teachmate/internal/history"
	"github.com/hession/teachmate/internal/logger"
	"github.com/hession/teachmate/internal/memory"
	"github.com/hession/teachmate/internal/resolver"
)

// Service is what the handlers need from the resolver
type Service interface {
	Resolve(ctx context.Context, raw string) resolver.Result
	Teach(prompt, response string) (string, error)
	History() []history.Entry
	Memory() (memory.Snapshot, error)
}

// Config server configuration
type Config struct {
	Addr            string
	StaticDir       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server HTTP front of the resolver
type Server struct {
	cfg     Config
	service Service
	log     *logger.Logger
	handler http.Handler
}

// New builds the server and its routes
func New(cfg Config, service Service, log *logger.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{cfg: cfg, service: service, log: log}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ai", s.handleAI)
	mux.HandleFunc("POST /teach", s.handleTeach)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /inspectMemory", s.handleInspectMemory)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if dir := s.cfg.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			mux.Handle("GET /", http.FileServer(http.Dir(dir)))
			s.log.Info("serving static files from %s", dir)
		} else {
			s.log.Debug("static dir %s not found, static files disabled", dir)
		}
	}

	return chain(mux, recoverer(s.log), accessLog(s.log), requestID)
}

// Run listens on the configured address until ctx is done
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		ErrorLog:     stdlog.New(s.log.GetWriter(logger.WARN), "", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("AI server is running on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
