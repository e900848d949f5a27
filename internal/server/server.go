package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/config"
	apperrors "github.com/quotalens/quotalens/internal/errors"
	"github.com/quotalens/quotalens/internal/observability"
	"github.com/quotalens/quotalens/internal/server/handlers"
	servermw "github.com/quotalens/quotalens/internal/server/middleware"
)

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	host     string
	port     int
	timeouts config.ServerConfig
	quota    *handlers.QuotaHandler
	metrics  bool
}

// Option configures a Server.
type Option func(*Server)

// WithQuotaService serves /v1/quota from svc.
func WithQuotaService(svc handlers.QuotaService) Option {
	return func(s *Server) {
		s.quota = handlers.NewQuotaHandler(svc)
	}
}

// WithTimeouts applies the read, write and idle timeouts from cfg.
func WithTimeouts(cfg config.ServerConfig) Option {
	return func(s *Server) {
		s.timeouts = cfg
	}
}

// WithMetrics toggles the /metrics endpoint.
func WithMetrics(enabled bool) Option {
	return func(s *Server) {
		s.metrics = enabled
	}
}

// New creates a new HTTP server instance
func New(host string, port int, opts ...Option) *Server {
	r := chi.NewRouter()

	// Standard chi middleware
	r.Use(middleware.RealIP)

	// Request ID first so metrics, logs and panic envelopes share it; recovery
	// sits inside metrics so a panic is still counted as a 500.
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:  r,
		host:    host,
		port:    port,
		metrics: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  durationOr(s.timeouts.ReadTimeout, 30*time.Second),
		WriteTimeout: durationOr(s.timeouts.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(s.timeouts.IdleTimeout, 120*time.Second),
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.host),
			zap.Int("port", s.port),
			zap.String("addr", addr))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
