// Package gateway exposes the chat orchestrator over HTTP, server-sent
// events and websockets.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/auth"
	"github.com/haasonsaas/toolchat/internal/observability"
	"github.com/haasonsaas/toolchat/internal/ratelimit"
	"github.com/haasonsaas/toolchat/internal/storage"
	"github.com/haasonsaas/toolchat/pkg/models"
)

// Config configures the HTTP server.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// DefaultConfig returns the default server configuration. WriteTimeout is
// zero because streaming responses outlive any fixed deadline.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":3000",
		ReadTimeout:     15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    1 << 20,
	}
}

// ChatService is the orchestrator surface the gateway needs.
type ChatService interface {
	Chat(ctx context.Context, req agent.ChatRequest) (*models.ChatResult, error)
	ChatStream(ctx context.Context, req agent.ChatRequest) (<-chan models.StreamEvent, error)
	Registry() *agent.ToolRegistry
}

// StatusReader exposes read-only rate limit state.
type StatusReader interface {
	GetStatus(key string) ratelimit.Status
}

// Deps are the collaborators of a Server. Chat is required; the rest are
// optional and disable their routes or features when nil.
type Deps struct {
	Chat     ChatService
	Limiter  StatusReader
	Users    storage.UserStore
	History  storage.HistoryStore
	JWT      *auth.JWTService
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	// AllowHeaderIdentity trusts x-user-id and body userId.
	AllowHeaderIdentity bool
}

// Server is the HTTP front door of the chat service.
type Server struct {
	config Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	httpServer *http.Server
	listener   net.Listener
}

// New creates a Server.
func New(config Config, deps Deps) (*Server, error) {
	if deps.Chat == nil {
		return nil, &agent.ConfigurationError{Message: "gateway: chat service is required"}
	}
	defaults := DefaultConfig()
	if config.ListenAddr == "" {
		config.ListenAddr = defaults.ListenAddr
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: config,
		deps:   deps,
		logger: logger.With("component", "gateway"),
		now:    time.Now,
	}, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /api/chat/ws", s.handleWebsocket)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/rate-limit/{key}", s.handleRateLimitStatus)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /isAlive", s.handleHealth)
	mux.HandleFunc("GET /isalive", s.handleHealth)

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return chain(mux,
		s.recoverMiddleware,
		s.requestIDMiddleware,
		s.metricsMiddleware,
		s.corsMiddleware,
	)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
	s.logger.Info("starting http server", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("http server shutdown error", "error", err)
	}
	s.httpServer = nil
	s.listener = nil
	return err
}
