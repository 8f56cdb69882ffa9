// Package httpserver provides the HTTP REST API server for the research graph service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deepscience/research-graph-service/internal/cv"
	"github.com/deepscience/research-graph-service/internal/database"
	"github.com/deepscience/research-graph-service/internal/outreach"
	"github.com/deepscience/research-graph-service/internal/repository"
	"github.com/deepscience/research-graph-service/internal/runstate"
)

// RunExecutor drives the discovery pipeline for a registered run. The server
// spawns one goroutine per started run and polls the state store for progress.
type RunExecutor interface {
	Execute(ctx context.Context, runID uuid.UUID)
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// DefaultMaxNodes is used when a start request omits max_nodes.
	DefaultMaxNodes int
	// MaxNodesLimit caps the requested graph size.
	MaxNodesLimit int
	// RunTimeout bounds one pipeline execution.
	RunTimeout time.Duration
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	cfg        Config

	store     *runstate.Store
	executor  RunExecutor
	runRepo   repository.RunRepository
	userRepo  repository.UserRepository
	cvStore   *cv.Store
	extractor cv.ConceptExtractor
	emails    *outreach.Generator
	db        *database.DB

	validate *validator.Validate
	logger   zerolog.Logger

	// baseCtx parents the per-run goroutine contexts so shutdown can stop them.
	baseCtx    context.Context
	cancelRuns context.CancelFunc
}

// Deps bundles the server's collaborators. UserRepo, Emails, and DB are
// optional; handlers depending on an absent collaborator return 503.
type Deps struct {
	Store     *runstate.Store
	Executor  RunExecutor
	RunRepo   repository.RunRepository
	UserRepo  repository.UserRepository
	CVStore   *cv.Store
	Extractor cv.ConceptExtractor
	Emails    *outreach.Generator
	DB        *database.DB
	Logger    zerolog.Logger
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:        cfg,
		store:      deps.Store,
		executor:   deps.Executor,
		runRepo:    deps.RunRepo,
		userRepo:   deps.UserRepo,
		cvStore:    deps.CVStore,
		extractor:  deps.Extractor,
		emails:     deps.Emails,
		db:         deps.DB,
		validate:   validator.New(),
		logger:     deps.Logger.With().Str("component", "http-server").Logger(),
		baseCtx:    baseCtx,
		cancelRuns: cancel,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.startRun)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{runID}", s.getRun)
		r.Post("/cvs", s.uploadCV)
		r.Post("/emails", s.generateEmail)
	})

	return r
}

// Router exposes the configured router for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server and cancels in-flight runs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelRuns()
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including database connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
