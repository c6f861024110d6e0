package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetransit/livetransit/internal/api/handler"
	"github.com/livetransit/livetransit/internal/api/models"
	"github.com/livetransit/livetransit/internal/feedstore"
	"github.com/livetransit/livetransit/internal/gtfsrt"
	"github.com/livetransit/livetransit/internal/provider/resilience"
	"github.com/livetransit/livetransit/internal/realtime"
)

type fakeDiagnostics struct {
	statuses []feedstore.FeedStatus
	err      error
}

func (d fakeDiagnostics) Diagnostics(context.Context) ([]feedstore.FeedStatus, error) {
	return d.statuses, d.err
}

func TestListFeeds(t *testing.T) {
	h := handler.NewFeedsHandler(handler.FeedsHandlerConfig{
		Feeds: fakeDiagnostics{statuses: []feedstore.FeedStatus{
			{Feed: "sydneytrains", Kind: gtfsrt.KindTripUpdates, Count: 42, FetchedAt: now().Add(-30 * time.Second), Age: 30 * time.Second},
		}},
		Snapshots:      staticSnapshots{snap: freshSnapshot(nil, nil)},
		RefreshMetrics: func() map[string]interface{} { return map[string]interface{}{"total_refreshes": 3} },
		Logger:         zerolog.Nop(),
		Now:            now,
	})

	rec := serve(http.MethodGet, "/v1/feeds", "/v1/feeds", "", h.ListFeeds)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[models.FeedsResponse](t, rec)
	assert.Equal(t, realtime.StatusFresh, body.Realtime.Status)
	require.Len(t, body.Feeds, 1)
	assert.Equal(t, "sydneytrains", body.Feeds[0].Feed)
	assert.Equal(t, 42, body.Feeds[0].Count)
	assert.Equal(t, 30, body.Feeds[0].AgeSeconds)
	assert.EqualValues(t, 3, body.Refresh["total_refreshes"])
}

func TestListFeeds_StoreFailure(t *testing.T) {
	h := handler.NewFeedsHandler(handler.FeedsHandlerConfig{
		Feeds:  fakeDiagnostics{err: errors.New("connection refused")},
		Logger: zerolog.Nop(),
	})

	rec := serve(http.MethodGet, "/v1/feeds", "/v1/feeds", "", h.ListFeeds)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, models.CodeUnavailable, decode[models.Problem](t, rec).Code)
}

func TestHealthCheck(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsHandlerConfig{Version: "1.2.3", BuildTime: "today", Now: now})

	rec := serve(http.MethodGet, "/health", "/health", "", h.HealthCheck)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusOK, body.Status)
	assert.Equal(t, "1.2.3", body.Details["version"])
}

func TestReadinessCheck(t *testing.T) {
	ok := handler.ReadinessCheck{Name: "feed-store", Check: func(context.Context) error { return nil }}
	failing := handler.ReadinessCheck{Name: "database", Check: func(context.Context) error { return errors.New("down") }}

	t.Run("ready", func(t *testing.T) {
		h := handler.NewOpsHandler(handler.OpsHandlerConfig{Checks: []handler.ReadinessCheck{ok}})
		rec := serve(http.MethodGet, "/ready", "/ready", "", h.ReadinessCheck)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decode[models.Health](t, rec).Details["feed-store"])
	})

	t.Run("not ready", func(t *testing.T) {
		h := handler.NewOpsHandler(handler.OpsHandlerConfig{Checks: []handler.ReadinessCheck{ok, failing}})
		rec := serve(http.MethodGet, "/ready", "/ready", "", h.ReadinessCheck)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decode[models.Health](t, rec)
		assert.Equal(t, models.HealthStatusFail, body.Status)
		assert.Equal(t, "down", body.Details["database"])
	})
}

func TestSystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.PlannerClientConfig("tfnsw")
	cfg.Registry = registry
	_ = resilience.NewClient(cfg)
	registry.Record("tfnsw", 120*time.Millisecond, nil)

	tests := []struct {
		name     string
		snap     *realtime.Snapshot
		want     models.HealthStatus
		wantRT   models.HealthStatus
		status   realtime.Status
		feedsErr error
	}{
		{"fresh", freshSnapshot(nil, nil), models.HealthStatusOK, models.HealthStatusOK, realtime.StatusFresh, nil},
		{"stale", realtime.NewSnapshot(now(), time.Second, &feedstore.Batch{Kind: gtfsrt.KindTripUpdates, FetchedAt: now().Add(-time.Minute)}), models.HealthStatusDegraded, models.HealthStatusDegraded, realtime.StatusStale, nil},
		{"unavailable", realtime.EmptySnapshot(now()), models.HealthStatusFail, models.HealthStatusFail, realtime.StatusUnavailable, nil},
		{"feed store down", freshSnapshot(nil, nil), models.HealthStatusFail, models.HealthStatusOK, realtime.StatusFresh, errors.New("down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOpsHandler(handler.OpsHandlerConfig{
				Registry:       registry,
				Feeds:          fakeDiagnostics{err: tt.feedsErr},
				Snapshots:      staticSnapshots{snap: tt.snap},
				ActiveSessions: func() int { return 2 },
				Now:            now,
			})

			rec := serve(http.MethodGet, "/v1/status/providers", "/v1/status/providers", "", h.SystemStatus)

			require.Equal(t, http.StatusOK, rec.Code)
			body := decode[models.SystemStatus](t, rec)
			assert.Equal(t, tt.want, body.Status)
			assert.Equal(t, tt.status, body.Realtime.Status)

			byName := map[string]models.SubsystemStatus{}
			for _, s := range body.Subsystems {
				byName[s.Name] = s
			}
			assert.Equal(t, tt.wantRT, byName["realtime"].Status)
			require.NotNil(t, byName["tracking"].Detail)
			assert.Equal(t, "2 active sessions", *byName["tracking"].Detail)

			require.Len(t, body.Providers, 1)
			assert.Equal(t, "tfnsw", body.Providers[0].Provider)
			assert.Equal(t, models.HealthStatusOK, body.Providers[0].Status)
			assert.Equal(t, "closed", body.Providers[0].CircuitState)
			assert.Equal(t, uint64(1), body.Providers[0].Calls)
			require.NotNil(t, body.Providers[0].LatencyMs)
			assert.Equal(t, int64(120), *body.Providers[0].LatencyMs)
			assert.NotNil(t, body.Providers[0].LastSuccessAt)
		})
	}
}

func TestSystemStatus_ProviderFailing(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.FeedClientConfig("gtfsrt")
	cfg.Registry = registry
	_ = resilience.NewClient(cfg)
	registry.Record("gtfsrt", time.Second, errors.New("upstream unavailable: Service Unavailable"))

	h := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Registry:  registry,
		Snapshots: staticSnapshots{snap: freshSnapshot(nil, nil)},
		Now:       now,
	})

	rec := serve(http.MethodGet, "/v1/status/providers", "/v1/status/providers", "", h.SystemStatus)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[models.SystemStatus](t, rec)
	assert.Equal(t, models.HealthStatusDegraded, body.Status)
	require.Len(t, body.Providers, 1)
	p := body.Providers[0]
	assert.Equal(t, models.HealthStatusDegraded, p.Status)
	assert.Equal(t, uint64(1), p.Failures)
	require.NotNil(t, p.Message)
	assert.Contains(t, *p.Message, "Service Unavailable")
}
