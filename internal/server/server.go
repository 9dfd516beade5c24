// Package server exposes the answer pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/pkg/utils"
)

// Asker runs the retrieval-only and full answer paths.
type Asker interface {
	Answer(ctx context.Context, question string, topK int) (*models.Response, error)
	Retrieve(ctx context.Context, question string, topK int) (*models.RetrievalResponse, error)
}

// StatusReporter describes the loaded index.
type StatusReporter interface {
	Status(ctx context.Context) (*Status, error)
}

// Config holds the HTTP settings.
type Config struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	DefaultTopK    int
	MaxTopK        int
}

// Server is the HTTP server for the copilot API.
type Server struct {
	asker    Asker
	status   StatusReporter
	gatherer prometheus.Gatherer
	config   Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server. status and gatherer may be nil, which disables /status
// and /metrics respectively.
func NewServer(asker Asker, status StatusReporter, gatherer prometheus.Gatherer, cfg Config, logger *zap.Logger) *Server {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 4
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 190 * time.Second
	}
	return &Server{
		asker:    asker,
		status:   status,
		gatherer: gatherer,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
}

// Router returns the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Post("/ask", s.handleAsk)
	r.Post("/ask_llm", s.handleAskLLM)
	if s.status != nil {
		r.Get("/status", s.handleStatus)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
