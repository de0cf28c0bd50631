// Package api provides the HTTP API of the training plan service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/runcoach/runcoach/internal/api/handler"
	"github.com/runcoach/runcoach/internal/api/middleware"
	"github.com/runcoach/runcoach/internal/api/models"
	"github.com/runcoach/runcoach/internal/api/response"
	"github.com/runcoach/runcoach/internal/provider/resilience"
)

// DefaultMaxBodyBytes caps plan request bodies.
const DefaultMaxBodyBytes = 64 << 10

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version      string
	BuildTime    string
	Logger       zerolog.Logger
	ServiceName  string
	Metrics      *middleware.Metrics
	Generator    handler.PlanGenerator
	Registry     *resilience.Registry
	RequireTLS   bool
	MaxBodyBytes int64
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "runcoach-api"
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, models.MsgNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusMethodNotAllowed, models.MsgMethodNotAllowed, nil)
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)
	planHandler := handler.NewPlanHandler(cfg.Generator)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireJSON)
		r.Use(middleware.LimitBody(maxBody))
		r.Post("/generate-plan", planHandler.GeneratePlan)
	})

	r.Route("/v1/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	return r
}
