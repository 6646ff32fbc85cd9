// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/medcare-tui/internal/session"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultShutdownTimeout bounds graceful shutdown when Serve's context ends.
	DefaultShutdownTimeout = 5 * time.Second

	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Server serves the operational endpoints.
type Server struct {
	addr    string
	version string
	started time.Time

	mux     *http.ServeMux
	metrics http.Handler
	status  func() session.Status
	auth    *AuthConfig
	limiter *RateLimiter
	logger  *log.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithSessionStatus serves the result of fn at /session.
func WithSessionStatus(fn func() session.Status) Option {
	return func(s *Server) {
		s.status = fn
	}
}

// WithAuth protects /metrics and /session. /healthz stays open.
func WithAuth(config *AuthConfig) Option {
	return func(s *Server) {
		s.auth = config
	}
}

// WithRateLimiter replaces the default limiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) {
		if rl != nil {
			s.limiter = rl
		}
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server that will listen on addr.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		version: "dev",
		started: time.Now(),
		mux:     http.NewServeMux(),
		limiter: DefaultRateLimiter(),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	protected := AuthMiddleware(s.auth)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /session", protected(http.HandlerFunc(s.handleSession)))

	metrics := s.metrics
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}
	s.mux.Handle("GET /metrics", protected(metrics))
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter),
	)(s.mux)
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

// SessionResponse is the body of /session. It carries no user identity.
type SessionResponse struct {
	Phase            string     `json:"phase"`
	Watchdog         bool       `json:"watchdog_enabled"`
	State            string     `json:"watchdog_state"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Countdown        int        `json:"countdown_seconds,omitempty"`
	TimeoutSeconds   int64      `json:"timeout_seconds"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
}

// NewSessionResponse builds the /session body from a status snapshot.
func NewSessionResponse(st session.Status) SessionResponse {
	resp := SessionResponse{
		Phase:            st.Phase.String(),
		Watchdog:         st.Watchdog,
		State:            st.State.String(),
		RemainingSeconds: int64(st.Remaining / time.Second),
		Countdown:        st.Countdown,
		TimeoutSeconds:   int64(st.Config.Timeout / time.Second),
	}
	if st.Phase == session.PhaseActive || st.Phase == session.PhaseWarning {
		started := st.StartedAt
		resp.StartedAt = &started
	}
	return resp
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusNotFound, "session status not available")
		return
	}
	writeJSON(w, http.StatusOK, NewSessionResponse(s.status()))
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Listen binds the address. Serve calls it when needed; calling it first
// lets the caller learn the bound address before serving.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Serve handles requests until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	srv := s.server
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Printf("SERVER_START | addr=%s version=%s", ln.Addr(), s.version)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("SERVER_SHUTDOWN | addr=%s", ln.Addr())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("SERVER_ENCODE_FAILED | error=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
