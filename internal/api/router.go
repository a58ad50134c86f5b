// Package api provides the HTTP API for trafigo.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/trafigo/trafigo/internal/api/handler"
	"github.com/trafigo/trafigo/internal/api/middleware"
	"github.com/trafigo/trafigo/internal/auth"
	"github.com/trafigo/trafigo/internal/fusion"
	"github.com/trafigo/trafigo/internal/geocode"
	"github.com/trafigo/trafigo/internal/planner"
	"github.com/trafigo/trafigo/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Tokens      *auth.TokenService
	Planner     *planner.Service
	Geocoder    geocode.Geocoder
	Graphs      *fusion.Service
	Providers   *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "trafigo-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	routeHandler := handler.NewRouteHandler(cfg.Planner, cfg.Geocoder)
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Graphs, cfg.Providers)

	serviceAuth := middleware.ServiceAuth(cfg.Tokens)

	planRateLimit := middleware.RateLimitByIP(middleware.PlanRateLimit)         // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min
	adminRateLimit := middleware.RateLimitByIP(middleware.AdminRateLimit)       // 10 req/min

	r.Route("/v1", func(r chi.Router) {
		// Route planning - may trigger a graph rebuild, rate limited
		r.With(planRateLimit).Post("/routes:plan", routeHandler.PlanRoute)

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		// Admin endpoints - service token required
		r.Route("/admin", func(r chi.Router) {
			r.Use(serviceAuth)
			r.Use(adminRateLimit)
			r.Post("/graph:rebuild", opsHandler.RebuildGraph)
		})
	})

	return r
}
