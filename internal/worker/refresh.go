package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/livetransit/livetransit/internal/feedstore"
	"github.com/livetransit/livetransit/internal/gtfsrt"
	"github.com/livetransit/livetransit/internal/provider/resilience"
)

const meterName = "github.com/livetransit/livetransit/internal/worker"

// maxFeedBytes bounds a single feed payload.
const maxFeedBytes = 64 << 20

// RefreshJob polls realtime feeds and ingests them into the feed store.
type RefreshJob struct {
	config     RefreshConfig
	store      *feedstore.FeedStore
	httpClient *resilience.Client
	apiKey     string
	logger     zerolog.Logger

	metrics *RefreshMetrics

	fetches       metric.Int64Counter
	fetchDuration metric.Float64Histogram
	entities      metric.Int64Counter
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes    int64
	SuccessfulFetches int64
	FailedFetches     int64
	DecodeErrors      int64
	Entities          int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Store  *feedstore.FeedStore

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// APIKey is sent as "Authorization: apikey <key>" when set.
	APIKey string

	Logger zerolog.Logger
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) (*RefreshJob, error) {
	if cfg.Store == nil {
		return nil, errors.New("feed store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.FeedClientConfig(ProviderName))
	}

	meter := otel.Meter(meterName)
	fetches, err := meter.Int64Counter(
		"feed.fetches",
		metric.WithDescription("Realtime feed fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}
	fetchDuration, err := meter.Float64Histogram(
		"feed.fetch.duration",
		metric.WithDescription("Duration of realtime feed fetches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	entities, err := meter.Int64Counter(
		"feed.entities",
		metric.WithDescription("Realtime entities ingested"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	return &RefreshJob{
		config:        cfg.Config.withDefaults(),
		store:         cfg.Store,
		httpClient:    httpClient,
		apiKey:        cfg.APIKey,
		logger:        cfg.Logger.With().Str("component", "worker").Logger(),
		metrics:       &RefreshMetrics{},
		fetches:       fetches,
		fetchDuration: fetchDuration,
		entities:      entities,
	}, nil
}

// Config returns the effective configuration.
func (j *RefreshJob) Config() RefreshConfig {
	return j.config
}

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalSources int
	Successful   int
	Failed       int
	DecodeErrors int
	Entities     int
	Errors       []RefreshError
}

// RefreshError represents an error during refresh.
type RefreshError struct {
	Feed  string
	Kind  gtfsrt.Kind
	Error string
}

// Run polls every configured source once.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.RunSources(ctx, j.config.Sources())
}

// RunSources polls the given sources from a bounded pool of workers.
func (j *RefreshJob) RunSources(ctx context.Context, sources []Source) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		StartTime:    startTime,
		TotalSources: len(sources),
	}

	j.logger.Debug().
		Int("sources", result.TotalSources).
		Int("concurrency", j.config.Concurrency).
		Msg("starting feed refresh")

	sourcesChan := make(chan Source, len(sources))
	resultsChan := make(chan sourceResult, len(sources))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, sourcesChan, resultsChan)
		}()
	}

	for _, s := range sources {
		sourcesChan <- s
	}
	close(sourcesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for sr := range resultsChan {
		if sr.err == nil {
			result.Successful++
			result.Entities += sr.entities
			continue
		}
		result.Failed++
		var decodeErr *gtfsrt.DecodeError
		if errors.As(sr.err, &decodeErr) {
			result.DecodeErrors++
		}
		result.Errors = append(result.Errors, RefreshError{
			Feed:  sr.source.Feed,
			Kind:  sr.source.Kind,
			Error: sr.err.Error(),
		})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	evt := j.logger.Info()
	if result.Failed > 0 {
		evt = j.logger.Warn()
	}
	evt.
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("decode_errors", result.DecodeErrors).
		Int("entities", result.Entities).
		Msg("feed refresh completed")

	return result
}

// Poll runs the job immediately and then on every tick until ctx is done.
func (j *RefreshJob) Poll(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

type sourceResult struct {
	source   Source
	entities int
	err      error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, sources <-chan Source, results chan<- sourceResult) {
	for source := range sources {
		if err := ctx.Err(); err != nil {
			results <- sourceResult{source: source, err: err}
			continue
		}
		results <- j.refreshSource(ctx, source)
	}
}

// refreshSource fetches and ingests one source. A decode failure leaves the
// previous batch in the store and is reported like any other failure.
func (j *RefreshJob) refreshSource(ctx context.Context, source Source) sourceResult {
	result := sourceResult{source: source}

	fetchCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	data, err := j.fetch(fetchCtx, source.URL)
	if err == nil {
		var batch *feedstore.Batch
		batch, err = j.store.Ingest(ctx, source.Feed, source.Kind, data, j.config.Format)
		if err == nil {
			result.entities = batch.Count()
		}
	}
	result.err = err

	attrs := metric.WithAttributes(
		attribute.String("feed", source.Feed),
		attribute.String("kind", string(source.Kind)),
		attribute.Bool("success", err == nil),
	)
	j.fetches.Add(ctx, 1, attrs)
	j.fetchDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err == nil {
		j.entities.Add(ctx, int64(result.entities), attrs)
	} else {
		j.logger.Warn().
			Err(err).
			Str("feed", source.Feed).
			Str("kind", string(source.Kind)).
			Msg("feed refresh failed")
	}

	return result
}

func (j *RefreshJob) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if j.apiKey != "" {
		req.Header.Set("Authorization", "apikey "+j.apiKey)
	}
	if j.config.Format == gtfsrt.FormatJSON {
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "application/x-google-protobuf")
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulFetches += int64(result.Successful)
	j.metrics.FailedFetches += int64(result.Failed)
	j.metrics.DecodeErrors += int64(result.DecodeErrors)
	j.metrics.Entities += int64(result.Entities)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulFetches:   j.metrics.SuccessfulFetches,
		FailedFetches:       j.metrics.FailedFetches,
		DecodeErrors:        j.metrics.DecodeErrors,
		Entities:            j.metrics.Entities,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_fetches":    m.SuccessfulFetches,
		"failed_fetches":        m.FailedFetches,
		"decode_errors":         m.DecodeErrors,
		"entities":              m.Entities,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
