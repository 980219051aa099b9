// Package server is the HTTP ingress: pipeline and source-control events,
// the job API, execution submission and inspection, health and metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/eventstore"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/jobapi"
)

// Publisher hands decoded events to their handlers.
type Publisher interface {
	Publish(ctx context.Context, evt any) error
}

// Jobs is the synchronous job API.
type Jobs interface {
	Handle(ctx context.Context, req ingress.JobRequest) (jobapi.Response, error)
}

// Executions looks up recorded workflow executions.
type Executions interface {
	Get(executionID string) (eventstore.ExecutionSummary, bool)
}

// Deps are the server's collaborators. Metrics may be nil.
type Deps struct {
	Bus        Publisher
	Jobs       Jobs
	Executions Executions
	Metrics    http.Handler
	Logger     *slog.Logger
}

// Server serves the ingress API.
type Server struct {
	deps    Deps
	adapter *ferrors.HTTPErrorAdapter
	router  chi.Router
	started time.Time
}

// New creates a Server and registers its routes.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		deps:    deps,
		adapter: ferrors.NewHTTPErrorAdapter(deps.Logger),
		started: time.Now(),
	}
	r := chi.NewRouter()
	r.Use(logging(deps.Logger), recovery(deps.Logger, s.adapter))
	s.routes(r)
	s.router = r
	return s
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.health)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}
	r.Post("/events/reference-updates", s.referenceUpdate)
	r.Post("/events/pipeline-outcomes", s.pipelineOutcome)
	r.Post("/jobs", s.job)
	r.Post("/executions", s.submitExecution)
	r.Get("/executions/{id}", s.execution)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("HTTP server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "http server failed").WithContext("addr", addr).Build()
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
