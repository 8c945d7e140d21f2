// Package api serves the tool registry over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/observability/metrics"
	"github.com/RowanDark/cryptbreak/internal/observability/tracing"
	"github.com/RowanDark/cryptbreak/internal/tools"
)

// TokenHeader carries the static management token on token requests.
const TokenHeader = "X-Cryptbreak-Token"

// Config configures the REST API server.
type Config struct {
	Addr     string
	Registry *tools.Registry
	// StaticToken guards token minting. JWT auth on the tool routes is
	// enabled only when JWTSecret is set.
	StaticToken     string
	JWTSecret       []byte
	JWTIssuer       string
	DefaultTokenTTL time.Duration
	// MaxBodyBytes bounds a tool request body. Defaults to 1 MiB.
	MaxBodyBytes int64
	// MetricsRefresh runs before each /metrics scrape.
	MetricsRefresh func()
	Audit          *logging.AuditLogger
	Logger         *slog.Logger
}

// Server exposes the tool registry over REST.
type Server struct {
	cfg           Config
	registry      *tools.Registry
	httpServer    *http.Server
	authenticator *Authenticator
	staticToken   string
	audit         *logging.AuditLogger
	logger        *slog.Logger
}

// NewServer constructs a REST API server using the provided configuration.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("api address must be provided")
	}
	if cfg.Registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "cryptbreak"
	}
	s := &Server{
		cfg:         cfg,
		registry:    cfg.Registry,
		staticToken: strings.TrimSpace(cfg.StaticToken),
		audit:       cfg.Audit,
		logger:      cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if len(cfg.JWTSecret) > 0 {
		auth, err := NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.DefaultTokenTTL)
		if err != nil {
			return nil, err
		}
		s.authenticator = auth
	}
	return s, nil
}

// Handler returns the routed, traced handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler(s.cfg.MetricsRefresh))
	mux.HandleFunc("/api/v1/api-tokens", s.handleTokenIssue)
	mux.Handle("/api/v1/tools", s.requireJWT(http.HandlerFunc(s.handleListTools)))
	mux.Handle("/api/v1/tools/{name}", s.requireJWT(http.HandlerFunc(s.handleInvokeTool)))
	return tracing.Middleware(mux)
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal error occurs.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	addr := ln.Addr().String()
	s.logger.Info("http api listening", "addr", addr)
	s.lifecycle("started", addr)
	defer s.lifecycle("stopped", addr)

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) lifecycle(state, addr string) {
	s.audit.EmitOrLog(s.logger, logging.AuditEvent{
		EventType: logging.EventServerLifecycle,
		Decision:  logging.DecisionInfo,
		Metadata:  map[string]any{"transport": "http", "state": state, "addr": addr},
	})
}

func (s *Server) handleTokenIssue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.authenticator == nil || s.staticToken == "" {
		http.Error(w, "token issuance disabled", http.StatusNotFound)
		return
	}
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); subtle.ConstantTimeCompare([]byte(token), []byte(s.staticToken)) != 1 {
		http.Error(w, "unauthorised", http.StatusUnauthorized)
		return
	}
	var req struct {
		Subject    string  `json:"subject"`
		Audience   string  `json:"audience"`
		Role       string  `json:"role"`
		TTLSeconds float64 `json:"ttl_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	ttl := time.Duration(req.TTLSeconds * float64(time.Second))
	token, expires, err := s.authenticator.MintWithOptions(req.Subject, TokenOptions{
		Audience: req.Audience,
		TTL:      ttl,
		Role:     req.Role,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func (s *Server) requireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}
		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := s.authenticator.Validate(authHeader[7:]); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	s.writeBody(w, status, body)
}

func (s *Server) writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}
