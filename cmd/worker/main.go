// Package main provides the entrypoint for the LiveTransit feed worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/api/handler"
	"github.com/livetransit/livetransit/internal/api/middleware"
	"github.com/livetransit/livetransit/internal/config"
	"github.com/livetransit/livetransit/internal/database"
	"github.com/livetransit/livetransit/internal/feedstore"
	"github.com/livetransit/livetransit/internal/provider/resilience"
	"github.com/livetransit/livetransit/internal/realtime"
	"github.com/livetransit/livetransit/internal/telemetry"
	"github.com/livetransit/livetransit/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	serviceName = "livetransit-worker"

	// expiredSweepInterval is how often expired Postgres batches are deleted.
	expiredSweepInterval = 5 * time.Minute
)

func main() {
	bootLog := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.LoadWorker()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := config.NewLogger(cfg.Common, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Strs("feeds", cfg.Feeds).
		Dur("poll_interval", cfg.PollInterval).
		Bool("pubsub", cfg.PubSubEnabled).
		Msg("starting LiveTransit worker")

	if cfg.FeedStore != config.FeedStorePostgres {
		log.Warn().Msg("worker is using the memory feed store - ingested feeds are not visible to the API process")
	}

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	var checks []handler.ReadinessCheck
	var backend feedstore.Store = feedstore.NewInMemoryStore()
	if cfg.FeedStore == config.FeedStorePostgres {
		pool, pg, dbErr := openPostgres(ctx)
		if dbErr != nil {
			log.Fatal().Err(dbErr).Msg("failed to open feed store")
		}
		defer pool.Close()
		backend = pg
		checks = append(checks, handler.ReadinessCheck{Name: "database", Check: pool.Ping})
		go sweepExpired(ctx, pg, log)
	}
	store := feedstore.New(feedstore.Config{Store: backend, Logger: log})

	registry := resilience.NewRegistry()
	httpConfig := resilience.FeedClientConfig(worker.ProviderName)
	httpConfig.Registry = registry
	httpConfig.Logger = log

	job, err := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			BaseURL:     cfg.TfNSWBaseURL,
			Feeds:       cfg.Feeds,
			Format:      cfg.FeedFormat,
			Concurrency: cfg.Concurrency,
			Timeout:     cfg.FetchTimeout,
		},
		Store:      store,
		HTTPClient: resilience.NewClient(httpConfig),
		APIKey:     cfg.TfNSWAPIKey,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create refresh job")
	}

	go job.Poll(ctx, cfg.PollInterval)

	if cfg.PubSubEnabled {
		ps, psErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.GCPProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to create pubsub handler")
		}
		defer ps.Close() //nolint:errcheck // best effort on shutdown
		go func() {
			if err := ps.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Worker also exposes health and feed diagnostics for Cloud Run
	merger := realtime.NewMerger(realtime.MergerConfig{Store: store, Logger: log})
	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Registry:  registry,
		Feeds:     store,
		Snapshots: merger,
		Checks:    checks,
	})
	feedsHandler := handler.NewFeedsHandler(handler.FeedsHandlerConfig{
		Feeds:          store,
		Snapshots:      merger,
		RefreshMetrics: job.MetricsSnapshot,
		Logger:         log,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.ContentTypeJSON)
	r.Get("/health", opsHandler.HealthCheck)
	r.Get("/ready", opsHandler.ReadinessCheck)
	r.Get("/v1/feeds", feedsHandler.ListFeeds)
	r.Get("/v1/status/providers", opsHandler.SystemStatus)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func openPostgres(ctx context.Context) (*pgxpool.Pool, *feedstore.PostgresStore, error) {
	pool, err := database.Connect(ctx, database.ConfigFromEnv(serviceName))
	if err != nil {
		return nil, nil, err
	}
	pg := feedstore.NewPostgresStore(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, pg, nil
}

func sweepExpired(ctx context.Context, pg *feedstore.PostgresStore, log zerolog.Logger) {
	ticker := time.NewTicker(expiredSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.DeleteExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("failed to delete expired feed batches")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("deleted expired feed batches")
			}
		}
	}
}
