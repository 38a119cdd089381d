// Package api exposes the answering service over HTTP.
//
// Endpoints:
//
//	GET  /health                          liveness probe
//	GET  /ready                           readiness probe (pings the database)
//	GET  /api/sessions                    list sessions for an owner
//	POST /api/sessions                    create session
//	GET  /api/sessions/{id}               get one session
//	GET  /api/sessions/{id}/messages      list messages
//	PUT  /api/sessions/{id}/documents     set context documents
//	POST /api/sessions/{id}/repair        repair an orphaned exchange
//	POST /api/sessions/{id}/answer        answer a question (SSE stream)
//	GET  /api/usage                       the caller's usage counters
//
// Every /api route is owner-scoped: the caller identifies itself with the
// X-Owner-ID header and only sees its own sessions.
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints
//   - session.go: session management endpoints
//   - answer.go: streaming answer endpoint (SSE)
//   - usage.go: usage counter endpoint
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillhq/quill/internal/answer"
	"github.com/quillhq/quill/internal/conversation"
	"github.com/quillhq/quill/internal/usage"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response. Answer
	// streams run long, so this bounds a whole turn, not a single write.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the answering service.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	health  *HealthHandler
	session *SessionHandler
	answer  *AnswerHandler
	usage   *UsageHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(
	store *conversation.Store,
	pipeline *answer.Pipeline,
	integrity *conversation.IntegrityManager,
	meter *usage.Meter,
	pool *pgxpool.Pool,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		health:  NewHealthHandler(pool, logger),
		session: NewSessionHandler(store, integrity, logger),
		answer:  NewAnswerHandler(pipeline, logger),
		usage:   NewUsageHandler(meter, logger),
	}

	s.health.RegisterRoutes(mux)
	s.session.RegisterRoutes(mux)
	s.answer.RegisterRoutes(mux)
	s.usage.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
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
