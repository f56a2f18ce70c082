// Package api exposes the pipeline over HTTP.
//
// Endpoints:
//
//	POST   /api/v1/repositories       register a repository
//	GET    /api/v1/repositories/{id}  fetch a repository and its status
//	DELETE /api/v1/repositories/{id}  remove a repository and its chunks
//	POST   /api/v1/ingest             ingest documents for a repository
//	POST   /api/v1/query              run the retrieval pipeline
//	GET    /health                    liveness probe
//	GET    /ready                     readiness probe (pings the database)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: recovery, request IDs, logging, rate limiting
//   - repository.go: repository registration and lifecycle endpoints
//   - ingest.go: document ingestion endpoint
//   - query.go: query endpoint
//   - health.go: liveness and readiness probes
//   - response.go: JSON response helpers and taxonomy-to-status mapping
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing a response.
	// Queries fan out to two model providers, so this is generous.
	WriteTimeout = 120 * time.Second

	// IdleTimeout applies to keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// RequestLimiter admits or rejects a request for a client key.
// Satisfied by *ratelimit.Limiter.
type RequestLimiter interface {
	Allow(ctx context.Context, key string) error
}

// Server is the HTTP server for the pipeline's REST API.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	limiter    RequestLimiter
	trustProxy bool

	health *HealthHandler
	repos  *RepositoryHandler
	ingest *IngestHandler
	query  *QueryHandler
}

// NewServer creates a server with all routes registered. limiter may
// be nil, which disables request rate limiting.
func NewServer(health *HealthHandler, repos *RepositoryHandler, ingest *IngestHandler, query *QueryHandler, limiter RequestLimiter, trustProxy bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:        mux,
		logger:     logger,
		limiter:    limiter,
		trustProxy: trustProxy,
		health:     health,
		repos:      repos,
		ingest:     ingest,
		query:      query,
	}

	s.health.RegisterRoutes(mux)
	s.repos.RegisterRoutes(mux)
	s.ingest.RegisterRoutes(mux)
	s.query.RegisterRoutes(mux)

	return s
}

// Handler returns the mux wrapped in the middleware stack.
// Order: recovery → request ID → logging → rate limit → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
		rateLimitMiddleware(s.limiter, s.trustProxy, s.logger),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
