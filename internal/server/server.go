package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/me/gosched/internal/config"
	"github.com/me/gosched/internal/scheduler"
	"github.com/me/gosched/internal/store"
	"github.com/me/gosched/internal/ui"
	"github.com/me/gosched/pkg/model"
)

// Version is reported by the discovery and health endpoints.
const Version = "0.1.0"

// Server is the gosched REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	scheduler scheduler.Scheduler
	limiter   *rate.Limiter
	baseCtx   context.Context
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithRateLimit overrides the write rate limit from the config.
// A zero limit disables limiting.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limiter = newLimiter(limit, burst)
	}
}

// WithBaseContext sets the context the scheduler is started with from
// POST /scheduler/start. It defaults to context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) {
		s.baseCtx = ctx
	}
}

// New creates a new Server with all routes registered.
// sched may be nil when only the job store is exposed (e.g. in tests).
func New(cfg config.ServerConfig, st store.Store, sched scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		scheduler: sched,
		limiter:   newLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
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

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(rateLimitMiddleware(s.limiter))

	// HTML dashboard
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, ui.Prefix+"/", http.StatusFound)
	})
	r.Route(ui.Prefix, ui.New(s.store, s.scheduler, s.logger).RegisterRoutes)

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Jobs
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleCreateJob)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Put("/", s.handleUpdateJob)
				r.Delete("/", s.handleDeleteJob)
				r.Post("/cancel", s.handleCancelJob)
				r.Get("/status", s.handleJobStatus)
			})
		})

		// Scheduler control
		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", s.handleSchedulerStatus)
			r.Post("/start", s.handleSchedulerStart)
			r.Post("/stop", s.handleSchedulerStop)
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/{kind}", s.handleSchedulerJobs)
				r.Post("/clear-completed", s.handleClearJobs(model.StatusCompleted))
				r.Post("/clear-failed", s.handleClearJobs(model.StatusFailed))
			})
		})
	})
}
