package config_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetransit/livetransit/internal/config"
	"github.com/livetransit/livetransit/internal/gtfsrt"
)

func TestHelpers(t *testing.T) {
	t.Setenv("LT_STRING", "  value ")
	t.Setenv("LT_INT", "42")
	t.Setenv("LT_BAD_INT", "forty")
	t.Setenv("LT_BOOL", "true")
	t.Setenv("LT_DURATION", "90s")
	t.Setenv("LT_FLOAT", "0.25")
	t.Setenv("LT_LIST", "a, b,,c ")
	t.Setenv("LT_EMPTY_LIST", " , ")

	assert.Equal(t, "value", config.String("LT_STRING", "def"))
	assert.Equal(t, "def", config.String("LT_MISSING", "def"))
	assert.Equal(t, 42, config.Int("LT_INT", 1))
	assert.Equal(t, 1, config.Int("LT_BAD_INT", 1))
	assert.True(t, config.Bool("LT_BOOL", false))
	assert.True(t, config.Bool("LT_MISSING", true))
	assert.Equal(t, 90*time.Second, config.Duration("LT_DURATION", time.Second))
	assert.Equal(t, 0.25, config.Float("LT_FLOAT", 1))
	assert.Equal(t, 1.0, config.Float("LT_STRING", 1))
	assert.Equal(t, time.Second, config.Duration("LT_STRING", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, config.List("LT_LIST", nil))
	assert.Equal(t, []string{"x"}, config.List("LT_EMPTY_LIST", []string{"x"}))
}

func TestLoadAPI_Defaults(t *testing.T) {
	cfg, err := config.LoadAPI()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.FeedStoreMemory, cfg.FeedStore)
	assert.True(t, cfg.EmbeddedPoller)
	assert.Equal(t, 30*time.Second, cfg.TrackingRefreshInterval)
	assert.Equal(t, "livetransit.activity", cfg.NATSSubjectPrefix)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.False(t, cfg.RequireTLS)
	assert.Equal(t, gtfsrt.FormatProtobuf, cfg.Worker.FeedFormat)
	assert.Len(t, cfg.Worker.Feeds, 5)
}

func TestLoadAPI_Postgres(t *testing.T) {
	t.Setenv("FEED_STORE", "Postgres")
	t.Setenv("TRACKING_REFRESH_INTERVAL", "10s")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	assert.Equal(t, config.FeedStorePostgres, cfg.FeedStore)
	assert.False(t, cfg.EmbeddedPoller)
	assert.Equal(t, 10*time.Second, cfg.TrackingRefreshInterval)
}

func TestLoadWorker(t *testing.T) {
	t.Setenv("FEEDS", "sydneytrains,metro")
	t.Setenv("FEED_FORMAT", "json")
	t.Setenv("POLL_INTERVAL", "5s")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)
	assert.Equal(t, []string{"sydneytrains", "metro"}, cfg.Feeds)
	assert.Equal(t, gtfsrt.FormatJSON, cfg.FeedFormat)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.False(t, cfg.PubSubEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "feed store", env: map[string]string{"FEED_STORE": "redis"}},
		{name: "feed format", env: map[string]string{"FEED_FORMAT": "xml"}},
		{name: "poll interval", env: map[string]string{"POLL_INTERVAL": "-1s"}},
		{name: "pubsub without project", env: map[string]string{"PUBSUB_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadWorker()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger := config.NewLogger(config.Common{LogLevel: "warn", Env: "test"}, "livetransit-api", "dev")
	assert.Equal(t, "warn", logger.GetLevel().String())

	var buf bytes.Buffer
	out := logger.Output(&buf)
	out.Warn().Msg("hello")
	assert.Contains(t, buf.String(), `"service":"livetransit-api"`)
}
