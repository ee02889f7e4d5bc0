// Package http wires the verification API's route tree and server.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/prometheus"
	"github.com/medcheck/MedCheck-Engine/internal/interfaces/http/handlers"
	"github.com/medcheck/MedCheck-Engine/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
type RouterConfig struct {
	VerificationHandler *handlers.VerificationHandler
	AlertHandler        *handlers.AlertHandler
	HealthHandler       *handlers.HealthHandler

	CORS      middleware.CORSConfig
	Logging   middleware.LoggingConfig
	RateLimit *middleware.RateLimitConfig
	Limiter   middleware.RateLimiter

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter constructs the complete route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	if cfg.Limiter != nil && cfg.RateLimit != nil {
		r.Use(middleware.RateLimit(cfg.Limiter, *cfg.RateLimit))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.VerificationHandler != nil {
			api.Post("/verifications", cfg.VerificationHandler.Verify)
		}
		if cfg.AlertHandler != nil {
			api.Route("/alerts", func(ar chi.Router) {
				ar.Get("/", cfg.AlertHandler.ListActive)
				ar.Get("/{alertID}", cfg.AlertHandler.Get)
			})
		}
	})

	return r
}
