// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi serves the flowsmith operations as a JSON REST API, next
// to the streamable HTTP MCP endpoint and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tombee/flowsmith/internal/log"
	"github.com/tombee/flowsmith/internal/metrics"
	"github.com/tombee/flowsmith/internal/ratelimit"
	"github.com/tombee/flowsmith/internal/service"
	"github.com/tombee/flowsmith/internal/tracing"
)

// maxBodySize bounds request bodies.
const maxBodySize = 10 * 1024 * 1024

// Config wires the API to its collaborators. Only Service is required.
type Config struct {
	Service *service.Service
	Limiter *ratelimit.Limiter
	Metrics *metrics.Collector
	// Gatherer backs /metrics. Nil leaves the route unmounted.
	Gatherer prometheus.Gatherer
	// MCP is mounted at /mcp when set.
	MCP     http.Handler
	Logger  *slog.Logger
	Version string
}

// Server is the flowsmith REST API.
type Server struct {
	router   chi.Router
	service  *service.Service
	limiter  *ratelimit.Limiter
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
	mcp      http.Handler
	calls    *log.CallMiddleware
	logger   *slog.Logger
	version  string
}

// New creates a Server with all routes registered.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "http")

	s := &Server{
		router:   chi.NewRouter(),
		service:  cfg.Service,
		limiter:  cfg.Limiter,
		metrics:  cfg.Metrics,
		gatherer: cfg.Gatherer,
		mcp:      cfg.MCP,
		calls:    log.NewCallMiddleware(logger),
		logger:   logger,
		version:  cfg.Version,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(tracing.CorrelationMiddleware)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.mcp != nil {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Handle("/mcp", s.mcp)
		})
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(middleware.AllowContentType("application/json"))

		r.Post("/validate", s.call(service.OpValidate, s.handleValidate))
		r.Post("/validate/connections", s.call(service.OpValidateConnections, s.handleValidateConnections))
		r.Post("/validate/expressions", s.call(service.OpValidateExpressions, s.handleValidateExpressions))
		r.Post("/diff", s.call(service.OpDiff, s.handleDiff))
		r.Post("/autofix", s.call(service.OpAutofix, s.handleAutofix))

		r.Get("/nodes", s.call(service.OpSearchNodes, s.handleSearchNodes))
		r.Get("/nodes/{type}", s.call(service.OpNodeInfo, s.handleNodeInfo))
		r.Get("/templates", s.call(service.OpListTemplates, s.handleListTemplates))
		r.Get("/templates/{name}", s.call(service.OpGetTemplate, s.handleGetTemplate))
	})
}

// rateLimit rejects requests once the shared bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.metrics.RecordRateLimited("http")
			w.Header().Set("Retry-After", "1")
			writeProblem(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiFunc handles one API call and returns the value to encode.
type apiFunc func(r *http.Request) (any, error)

// call wraps fn with call logging and renders its result or error.
func (s *Server) call(name string, fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call := &log.Call{
			Surface:   "http",
			Name:      name,
			RequestID: tracing.FromContext(r.Context()).String(),
			Remote:    r.RemoteAddr,
		}
		var result any
		err := s.calls.Handle(r.Context(), call, func(ctx context.Context) error {
			var err error
			result, err = fn(r.WithContext(ctx))
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.service.Health(r.Context())
	status := http.StatusOK
	if h.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":        h.Status,
		"nodeTypes":     h.NodeTypes,
		"uptimeSeconds": h.Uptime,
		"version":       s.version,
	})
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve serves the API on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
