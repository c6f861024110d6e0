package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/api/models"
	"github.com/livetransit/livetransit/internal/api/response"
	"github.com/livetransit/livetransit/internal/feedstore"
)

// FeedDiagnostics reports the stored realtime feed batches.
type FeedDiagnostics interface {
	Diagnostics(ctx context.Context) ([]feedstore.FeedStatus, error)
}

// FeedsHandler handles feed diagnostics.
type FeedsHandler struct {
	feeds     FeedDiagnostics
	snapshots SnapshotLoader
	refresh   func() map[string]interface{}
	logger    zerolog.Logger
	now       func() time.Time
}

// FeedsHandlerConfig holds configuration for the feeds handler.
type FeedsHandlerConfig struct {
	Feeds     FeedDiagnostics
	Snapshots SnapshotLoader

	// RefreshMetrics reports the embedded feed poller, when there is one.
	RefreshMetrics func() map[string]interface{}

	Logger zerolog.Logger
	Now    func() time.Time
}

// NewFeedsHandler creates a new FeedsHandler.
func NewFeedsHandler(cfg FeedsHandlerConfig) *FeedsHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &FeedsHandler{
		feeds:     cfg.Feeds,
		snapshots: cfg.Snapshots,
		refresh:   cfg.RefreshMetrics,
		logger:    cfg.Logger.With().Str("component", "feeds_handler").Logger(),
		now:       now,
	}
}

// ListFeeds handles GET /v1/feeds - stored feed batches and snapshot freshness.
func (h *FeedsHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.feeds.Diagnostics(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read feed diagnostics")
		response.ServiceUnavailable(w, r, "feed store is unavailable")
		return
	}

	resp := models.FeedsResponse{
		GeneratedAt: models.Timestamp(h.now()),
		Realtime:    models.NewRealtimeInfo(loadSnapshot(r.Context(), h.snapshots, h.now())),
		Feeds:       models.NewFeedStatuses(statuses),
	}
	if h.refresh != nil {
		resp.Refresh = h.refresh()
	}
	response.JSON(w, r, http.StatusOK, resp)
}
