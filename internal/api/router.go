// Package api provides the HTTP API for LiveTransit.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/api/handler"
	"github.com/livetransit/livetransit/internal/api/middleware"
	"github.com/livetransit/livetransit/internal/planner"
	"github.com/livetransit/livetransit/internal/provider/resilience"
	"github.com/livetransit/livetransit/internal/tracking"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Planner     planner.Planner
	Snapshots   handler.SnapshotLoader
	Feeds       handler.FeedDiagnostics
	Coordinator *tracking.Coordinator
	Registry    *resilience.Registry

	// RefreshMetrics reports the embedded feed poller, when there is one.
	RefreshMetrics func() map[string]interface{}

	// ReadinessChecks are probed by GET /ready.
	ReadinessChecks []handler.ReadinessCheck

	CORSAllowedOrigins []string

	// RateLimit overrides the standard per-minute request limit when positive.
	RateLimit int

	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "livetransit-api"
	}

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
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
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Location", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:        cfg.Version,
		BuildTime:      cfg.BuildTime,
		Registry:       cfg.Registry,
		Feeds:          cfg.Feeds,
		Snapshots:      cfg.Snapshots,
		ActiveSessions: activeSessions(cfg.Coordinator),
		Checks:         cfg.ReadinessChecks,
	})
	transitHandler := handler.NewTransitHandler(handler.TransitHandlerConfig{
		Planner:   cfg.Planner,
		Snapshots: cfg.Snapshots,
		Logger:    cfg.Logger,
	})
	feedsHandler := handler.NewFeedsHandler(handler.FeedsHandlerConfig{
		Feeds:          cfg.Feeds,
		Snapshots:      cfg.Snapshots,
		RefreshMetrics: cfg.RefreshMetrics,
		Logger:         cfg.Logger,
	})
	trackingHandler := handler.NewTrackingHandler(handler.TrackingHandlerConfig{
		Coordinator: cfg.Coordinator,
		Planner:     cfg.Planner,
		Snapshots:   cfg.Snapshots,
		Logger:      cfg.Logger,
	})

	standard := middleware.StandardRateLimit
	if cfg.RateLimit > 0 {
		standard.RequestLimit = cfg.RateLimit
	}

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(standard)                       // 100 req/min by default

	// Ops endpoints (public, unthrottled for probes)
	r.Get("/health", opsHandler.HealthCheck)
	r.Get("/ready", opsHandler.ReadinessCheck)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Planner-backed endpoints - expensive, strict rate limiting
		r.With(expensiveRateLimit).Get("/trips", transitHandler.PlanTrips)
		r.With(expensiveRateLimit).Get("/departures/{stopId}", transitHandler.Departures)

		// Cache-backed endpoints - standard rate limiting
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/alerts", transitHandler.Alerts)
			r.Get("/feeds", feedsHandler.ListFeeds)
			r.Get("/status/providers", opsHandler.SystemStatus)
		})

		// Tracking - limited per traveler
		r.Route("/tracking/{travelerId}", func(r chi.Router) {
			r.With(middleware.RequireJSON, expensiveRateLimit).Post("/", trackingHandler.StartTracking)
			r.With(middleware.RateLimitByTraveler(standard)).Get("/", trackingHandler.GetTracking)
			r.With(middleware.RateLimitByTraveler(standard)).Delete("/", trackingHandler.StopTracking)
			r.With(middleware.RequireJSON, middleware.RateLimitByTraveler(middleware.SampleRateLimit)).
				Post("/samples", trackingHandler.RecordSample)
		})
	})

	return r
}

func activeSessions(c *tracking.Coordinator) func() int {
	if c == nil {
		return nil
	}
	return c.Active
}
