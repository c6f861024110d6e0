// Package main provides the entrypoint for the LiveTransit API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/api"
	"github.com/livetransit/livetransit/internal/api/handler"
	"github.com/livetransit/livetransit/internal/api/middleware"
	"github.com/livetransit/livetransit/internal/config"
	"github.com/livetransit/livetransit/internal/database"
	"github.com/livetransit/livetransit/internal/feedstore"
	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/notify"
	"github.com/livetransit/livetransit/internal/planner/tfnsw"
	"github.com/livetransit/livetransit/internal/provider/resilience"
	"github.com/livetransit/livetransit/internal/realtime"
	"github.com/livetransit/livetransit/internal/telemetry"
	"github.com/livetransit/livetransit/internal/tracking"
	"github.com/livetransit/livetransit/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "livetransit-api"

func main() {
	bootLog := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.LoadAPI()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	// Setup structured logging
	log := config.NewLogger(cfg.Common, serviceName, Version)

	log.Info().
		Str("build_time", BuildTime).
		Str("feed_store", cfg.FeedStore).
		Bool("embedded_poller", cfg.EmbeddedPoller).
		Msg("starting LiveTransit API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
		SampleRatio:    cfg.OTELSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Initialize metrics
	metrics, err := middleware.NewMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Feed store
	var checks []handler.ReadinessCheck
	backend, pool, err := openFeedStore(ctx, cfg.Common, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open feed store")
	}
	if pool != nil {
		defer pool.Close()
		checks = append(checks, handler.ReadinessCheck{Name: "database", Check: pool.Ping})
	}
	store := feedstore.New(feedstore.Config{Store: backend, Logger: log})

	merger := realtime.NewMerger(realtime.MergerConfig{
		Store:          store,
		Logger:         log,
		FreshThreshold: cfg.FreshThreshold,
		CacheTTL:       cfg.SnapshotCacheTTL,
	})

	// Trip planner behind a resilient client that reports into the provider registry
	registry := resilience.NewRegistry()
	plannerHTTP := resilience.PlannerClientConfig(tfnsw.ProviderName)
	plannerHTTP.Registry = registry
	plannerHTTP.Logger = log
	tripPlanner := tfnsw.NewClient(tfnsw.ClientConfig{
		APIKey:     cfg.TfNSWAPIKey,
		BaseURL:    cfg.TfNSWBaseURL,
		HTTPClient: resilience.NewClient(plannerHTTP),
		Logger:     log,
	})
	if cfg.TfNSWAPIKey == "" {
		log.Warn().Msg("TFNSW_API_KEY not set - trip planner requests will be rejected")
	}

	// Live activity delivery
	var publisher tracking.Publisher = notify.NewLogPublisher(log)
	if cfg.NATSURL != "" {
		nc, natsErr := notify.Connect(cfg.NATSURL, log)
		if natsErr != nil {
			log.Fatal().Err(natsErr).Msg("failed to connect to nats")
		}
		defer nc.Drain() //nolint:errcheck // best effort on shutdown
		natsPublisher, natsErr := notify.NewNATSPublisher(notify.NATSConfig{
			Conn:          nc,
			SubjectPrefix: cfg.NATSSubjectPrefix,
			Logger:        log,
		})
		if natsErr != nil {
			log.Fatal().Err(natsErr).Msg("failed to create nats publisher")
		}
		publisher = natsPublisher
		checks = append(checks, handler.ReadinessCheck{Name: "nats", Check: func(context.Context) error {
			if nc.IsConnected() {
				return nil
			}
			return fmt.Errorf("nats connection %s", nc.Status())
		}})
		log.Info().Str("subject_prefix", cfg.NATSSubjectPrefix).Msg("publishing live activity updates to nats")
	}

	coordinator := tracking.NewCoordinator(tracking.CoordinatorConfig{
		Publisher: publisher,
		Logger:    log,
	})

	// Embedded feed poller
	var refreshMetrics func() map[string]interface{}
	if cfg.EmbeddedPoller {
		feedHTTP := resilience.FeedClientConfig(worker.ProviderName)
		feedHTTP.Registry = registry
		feedHTTP.Logger = log
		job, jobErr := worker.NewRefreshJob(worker.RefreshJobConfig{
			Config: worker.RefreshConfig{
				BaseURL:     cfg.TfNSWBaseURL,
				Feeds:       cfg.Worker.Feeds,
				Format:      cfg.Worker.FeedFormat,
				Concurrency: cfg.Worker.Concurrency,
				Timeout:     cfg.Worker.FetchTimeout,
			},
			Store:      store,
			HTTPClient: resilience.NewClient(feedHTTP),
			APIKey:     cfg.TfNSWAPIKey,
			Logger:     log,
		})
		if jobErr != nil {
			log.Fatal().Err(jobErr).Msg("failed to create feed poller")
		}
		refreshMetrics = job.MetricsSnapshot
		go job.Poll(ctx, cfg.Worker.PollInterval)
	}

	go refreshTracking(ctx, coordinator, merger, cfg.TrackingRefreshInterval, log)

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		Planner:            tripPlanner,
		Snapshots:          merger,
		Feeds:              store,
		Coordinator:        coordinator,
		Registry:           registry,
		RefreshMetrics:     refreshMetrics,
		ReadinessChecks:    checks,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:          cfg.RateLimit,
		RequireTLS:         cfg.RequireTLS,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openFeedStore returns the configured store backend, plus the pool when it is Postgres.
func openFeedStore(ctx context.Context, c config.Common, log zerolog.Logger) (feedstore.Store, *pgxpool.Pool, error) {
	if c.FeedStore != config.FeedStorePostgres {
		return feedstore.NewInMemoryStore(), nil, nil
	}

	dbConfig := database.ConfigFromEnv(serviceName)
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return nil, nil, err
	}
	pg := feedstore.NewPostgresStore(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info().Str("database", dbConfig.Redacted()).Msg("database connected")
	return pg, pool, nil
}

// refreshTracking re-applies the current realtime snapshot to every tracked journey.
func refreshTracking(ctx context.Context, c *tracking.Coordinator, merger *realtime.Merger, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Active() == 0 {
				continue
			}
			snap := merger.LoadSnapshot(ctx)
			pushed := c.RefreshRealtime(ctx, func(j journey.Journey) journey.Journey {
				return realtime.MergeJourney(j, snap)
			})
			log.Debug().
				Int("sessions", c.Active()).
				Int("pushed", pushed).
				Str("realtime", string(snap.Status)).
				Msg("tracking refresh")
		}
	}
}
