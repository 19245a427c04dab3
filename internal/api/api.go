// Package api exposes registration sessions over HTTP for the web front end, plus the
// Twilio inbound webhook, health and Prometheus endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/RegFlow/internal/metrics"
	"github.com/BTreeMap/RegFlow/internal/registration"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	// maxBodyBytes bounds request payloads.
	maxBodyBytes = 64 << 10
)

// Server serves the registration HTTP API.
type Server struct {
	reg     *registration.Service
	addr    string
	webhook http.HandlerFunc
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithTwilioWebhook mounts the Twilio inbound webhook at POST /twilio/webhook.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(s *Server) { s.webhook = h }
}

// NewServer creates a Server backed by the registration service.
func NewServer(reg *registration.Service, opts ...Option) *Server {
	s := &Server{reg: reg, addr: DefaultAddr}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.startSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("DELETE /sessions/{id}", s.resetSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/answer", s.answerHandler)
	mux.HandleFunc("POST /sessions/{id}/skip", s.skipHandler)
	mux.HandleFunc("POST /sessions/{id}/back", s.backHandler)
	mux.HandleFunc("POST /sessions/{id}/select", s.selectHandler)
	mux.HandleFunc("POST /sessions/{id}/submit", s.submitSelectionHandler)
	mux.HandleFunc("PUT /sessions/{id}/input", s.pendingInputHandler)
	mux.HandleFunc("GET /schema", s.schemaHandler)
	mux.HandleFunc("GET /registrations", s.registrationsHandler)
	mux.HandleFunc("GET /healthz", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.webhook != nil {
		mux.HandleFunc("POST /twilio/webhook", s.webhook)
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
