// Package server exposes the latex command over HTTP.
//
// Routes:
//
//	POST /v1/latex   run the command; JSON body {"scope", "query"}
//	GET  /healthz    liveness
//	GET  /readyz     readiness
//	GET  /health     per-check detail
//	GET  /metrics    prometheus exposition, when configured
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jonwraymond/latexbot/auth"
	"github.com/jonwraymond/latexbot/health"
	"github.com/jonwraymond/latexbot/latex"
	"github.com/jonwraymond/latexbot/observe"
)

// Defaults applied to zero Config fields.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 90 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxQueryBytes   = 64 << 10
)

// ErrNoHandler is returned by New without a latex handler.
var ErrNoHandler = errors.New("server: latex handler is required")

// Config configures a Server.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// MaxQueryBytes caps the request body of POST /v1/latex.
	MaxQueryBytes int64

	Handler *latex.Handler

	// Health backs /readyz and /health. Nil serves only /healthz.
	Health *health.Aggregator

	// Auth guards POST /v1/latex. Nil admits every caller.
	Auth auth.Authenticator

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	Logger observe.Logger
}

// Server serves the HTTP surface.
type Server struct {
	addr            string
	maxQuery        int64
	shutdownTimeout time.Duration

	latex  *latex.Handler
	logger observe.Logger
	newID  func() string

	handler http.Handler
	server  *http.Server
}

// New builds a Server and its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}
	s := &Server{
		addr:            orDefault(cfg.Addr, DefaultAddr),
		maxQuery:        cfg.MaxQueryBytes,
		shutdownTimeout: cfg.ShutdownTimeout,
		latex:           cfg.Handler,
		logger:          cfg.Logger,
		newID:           newRequestID,
	}
	if s.maxQuery <= 0 {
		s.maxQuery = DefaultMaxQueryBytes
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = DefaultShutdownTimeout
	}
	if s.logger == nil {
		s.logger = observe.NopLogger()
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux, cfg)
	s.handler = s.withRequestID(mux)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadTimeout:       durationOr(cfg.ReadTimeout, DefaultReadTimeout),
		ReadHeaderTimeout: durationOr(cfg.ReadTimeout, DefaultReadTimeout),
		WriteTimeout:      durationOr(cfg.WriteTimeout, DefaultWriteTimeout),
		IdleTimeout:       DefaultIdleTimeout,
	}
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) registerRoutes(mux *http.ServeMux, cfg Config) {
	guard := auth.Middleware(cfg.Auth, s.logRejected)
	mux.Handle("POST /v1/latex", guard(http.HandlerFunc(s.handleLatex)))

	if cfg.Health != nil {
		health.RegisterHandlers(mux, cfg.Health)
	} else {
		mux.HandleFunc("GET /healthz", health.LivenessHandler())
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "server listening", observe.F("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		s.logger.Info(ctx, "server stopped")
		return nil

	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	}
}

func (s *Server) logRejected(r *http.Request, result *auth.AuthResult, err error) {
	fields := []observe.Field{
		observe.F("path", r.URL.Path),
		observe.F("request_id", RequestIDFromContext(r.Context())),
	}
	if err != nil {
		fields = append(fields, observe.F("error", err))
	}
	if result == nil {
		s.logger.Error(r.Context(), "authenticator failed", fields...)
		return
	}
	if result.Method != "" {
		fields = append(fields, observe.F("method", result.Method))
	}
	s.logger.Warn(r.Context(), "request rejected", fields...)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
