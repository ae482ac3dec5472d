package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Really-Cool/mcpapi/internal/version"
)

// Default HTTP timeouts. WriteTimeout must stay above the recommendation
// engine's upstream timeout.
const (
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// RouteRegistrar is implemented by feature handlers that own a set of routes.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Config configures a Server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// Metrics, when set, is served at /metrics and receives the HTTP
	// request collectors.
	Metrics *prometheus.Registry
}

// Server is the MCP API HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New creates a Server and registers the core routes plus every registrar's
// routes.
func New(cfg Config, logger *zap.Logger, registrars ...RouteRegistrar) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpapi",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcpapi",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.middleware(mux),
		ReadTimeout:  orDefault(cfg.ReadTimeout, DefaultReadTimeout),
		WriteTimeout: orDefault(cfg.WriteTimeout, DefaultWriteTimeout),
		IdleTimeout:  orDefault(cfg.IdleTimeout, DefaultIdleTimeout),
	}

	s.registerCoreRoutes(cfg.Metrics)
	for _, r := range registrars {
		r.RegisterRoutes(mux)
	}

	return s
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes(reg *prometheus.Registry) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if reg != nil {
		reg.MustRegister(s.requests, s.latency)
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
}

// Mount registers h for pattern, for handlers that are not RouteRegistrars.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
	s.logger.Debug("mounted route", zap.String("pattern", pattern))
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-MCPAPI-Version", version.Short())
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mcpapi",
		"version": version.Map(),
	})
}
