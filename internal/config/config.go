// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/livetransit/livetransit/internal/gtfsrt"
)

// Feed store backends.
const (
	FeedStoreMemory   = "memory"
	FeedStorePostgres = "postgres"
)

// LoadDotEnv reads .env into the environment if it exists. Variables already set win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// String returns the variable or def when unset or empty.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int returns the variable parsed as an int, or def when unset or invalid.
func Int(key string, def int) int {
	v, err := strconv.Atoi(String(key, ""))
	if err != nil {
		return def
	}
	return v
}

// Bool returns the variable parsed as a bool, or def when unset or invalid.
func Bool(key string, def bool) bool {
	v, err := strconv.ParseBool(String(key, ""))
	if err != nil {
		return def
	}
	return v
}

// Float returns the variable parsed as a float64, or def when unset or invalid.
func Float(key string, def float64) float64 {
	v, err := strconv.ParseFloat(String(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

// Duration returns the variable parsed with time.ParseDuration, or def when unset or invalid.
func Duration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(String(key, ""))
	if err != nil {
		return def
	}
	return v
}

// List returns the comma separated variable with blanks dropped, or def when unset.
func List(key string, def []string) []string {
	raw := String(key, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// Common holds the settings shared by every binary.
type Common struct {
	Port         string
	Env          string
	LogFormat    string
	LogLevel     string
	OTELEnabled  bool
	OTLPEndpoint string

	// OTELSampleRatio is the fraction of root traces sampled.
	OTELSampleRatio float64

	FeedStore    string
	TfNSWAPIKey  string
	TfNSWBaseURL string
}

func loadCommon() Common {
	return Common{
		Port:            String("APP_PORT", "8080"),
		Env:             String("APP_ENV", "development"),
		LogFormat:       String("LOG_FORMAT", "json"),
		LogLevel:        String("LOG_LEVEL", "info"),
		OTELEnabled:     Bool("OTEL_ENABLED", false),
		OTLPEndpoint:    String("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELSampleRatio: Float("OTEL_SAMPLE_RATIO", 1),
		FeedStore:       strings.ToLower(String("FEED_STORE", FeedStoreMemory)),
		TfNSWAPIKey:     String("TFNSW_API_KEY", ""),
		TfNSWBaseURL:    String("TFNSW_BASE_URL", "https://api.transport.nsw.gov.au"),
	}
}

func (c Common) validate() error {
	switch c.FeedStore {
	case FeedStoreMemory, FeedStorePostgres:
	default:
		return fmt.Errorf("FEED_STORE must be %q or %q, got %q", FeedStoreMemory, FeedStorePostgres, c.FeedStore)
	}
	return nil
}

// APIConfig configures cmd/api.
type APIConfig struct {
	Common

	// FreshThreshold is the realtime age below which data is fresh.
	FreshThreshold time.Duration

	// SnapshotCacheTTL reuses a loaded realtime snapshot for this long.
	SnapshotCacheTTL time.Duration

	// TrackingRefreshInterval is how often tracked journeys are re-merged.
	TrackingRefreshInterval time.Duration

	// EmbeddedPoller runs the feed worker inside the API process.
	// Defaults to true with the memory feed store, which is not shared across processes.
	EmbeddedPoller bool

	Worker WorkerConfig

	NATSURL           string
	NATSSubjectPrefix string

	CORSAllowedOrigins []string
	RateLimit          int
	RequireTLS         bool
}

// LoadAPI reads the API configuration.
func LoadAPI() (APIConfig, error) {
	common := loadCommon()
	if err := common.validate(); err != nil {
		return APIConfig{}, err
	}

	worker, err := loadWorker(common)
	if err != nil {
		return APIConfig{}, err
	}

	return APIConfig{
		Common:                  common,
		FreshThreshold:          Duration("REALTIME_FRESH_THRESHOLD", 60*time.Second),
		SnapshotCacheTTL:        Duration("REALTIME_CACHE_TTL", 5*time.Second),
		TrackingRefreshInterval: Duration("TRACKING_REFRESH_INTERVAL", 30*time.Second),
		EmbeddedPoller:          Bool("EMBEDDED_POLLER", common.FeedStore == FeedStoreMemory),
		Worker:                  worker,
		NATSURL:                 String("NATS_URL", ""),
		NATSSubjectPrefix:       String("NATS_SUBJECT_PREFIX", "livetransit.activity"),
		CORSAllowedOrigins:      List("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimit:               Int("RATE_LIMIT_REQUESTS", 100),
		RequireTLS:              Bool("REQUIRE_TLS", false),
	}, nil
}

// WorkerConfig configures cmd/worker.
type WorkerConfig struct {
	Common

	Feeds        []string
	FeedFormat   gtfsrt.Format
	PollInterval time.Duration
	Concurrency  int
	FetchTimeout time.Duration

	PubSubEnabled      bool
	GCPProjectID       string
	PubSubSubscription string
}

// LoadWorker reads the worker configuration.
func LoadWorker() (WorkerConfig, error) {
	common := loadCommon()
	if err := common.validate(); err != nil {
		return WorkerConfig{}, err
	}
	return loadWorker(common)
}

func loadWorker(common Common) (WorkerConfig, error) {
	format, err := gtfsrt.ParseFormat(String("FEED_FORMAT", string(gtfsrt.FormatProtobuf)))
	if err != nil {
		return WorkerConfig{}, fmt.Errorf("FEED_FORMAT: %w", err)
	}

	cfg := WorkerConfig{
		Common:             common,
		Feeds:              List("FEEDS", []string{"sydneytrains", "metro", "lightrail", "buses", "ferries"}),
		FeedFormat:         format,
		PollInterval:       Duration("POLL_INTERVAL", 15*time.Second),
		Concurrency:        Int("FEED_CONCURRENCY", 3),
		FetchTimeout:       Duration("FEED_FETCH_TIMEOUT", 20*time.Second),
		PubSubEnabled:      Bool("PUBSUB_ENABLED", false),
		GCPProjectID:       String("GCP_PROJECT_ID", ""),
		PubSubSubscription: String("PUBSUB_SUBSCRIPTION", "feed-refresh"),
	}

	if cfg.PollInterval <= 0 {
		return WorkerConfig{}, fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.PubSubEnabled && cfg.GCPProjectID == "" {
		return WorkerConfig{}, errors.New("GCP_PROJECT_ID is required when PUBSUB_ENABLED is set")
	}
	return cfg, nil
}
