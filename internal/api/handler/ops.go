package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/livetransit/livetransit/internal/api/models"
	"github.com/livetransit/livetransit/internal/api/response"
	"github.com/livetransit/livetransit/internal/provider/resilience"
	"github.com/livetransit/livetransit/internal/realtime"
)

// ReadinessCheck is one dependency probed by GET /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandlerConfig holds configuration for the ops handler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	Registry  *resilience.Registry
	Feeds     FeedDiagnostics
	Snapshots SnapshotLoader

	// ActiveSessions reports the number of tracked travelers.
	ActiveSessions func() int

	Checks []ReadinessCheck
	Now    func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version        string
	buildTime      string
	registry       *resilience.Registry
	feeds          FeedDiagnostics
	snapshots      SnapshotLoader
	activeSessions func() int
	checks         []ReadinessCheck
	now            func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &OpsHandler{
		version:        cfg.Version,
		buildTime:      cfg.BuildTime,
		registry:       cfg.Registry,
		feeds:          cfg.Feeds,
		snapshots:      cfg.Snapshots,
		activeSessions: cfg.ActiveSessions,
		checks:         cfg.Checks,
		now:            now,
	}
}

// HealthCheck handles GET /health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /ready - 503 until every dependency answers.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	details := make(map[string]interface{}, len(h.checks))
	status := models.HealthStatusOK
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			details[c.Name] = err.Error()
			status = models.HealthStatusFail
			continue
		}
		details[c.Name] = "ok"
	}

	health := models.Health{
		Status:  status,
		Time:    models.Timestamp(h.now()),
		Details: details,
	}
	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/status/providers - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	snap := loadSnapshot(r.Context(), h.snapshots, h.now())
	subsystems := h.subsystems(r.Context(), snap)
	providers := h.providers()

	overall := models.HealthStatusOK
	for _, s := range subsystems {
		overall = worse(overall, s.Status)
	}
	for _, p := range providers {
		overall = worse(overall, p.Status)
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(h.now()),
		Realtime:   models.NewRealtimeInfo(snap),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) subsystems(ctx context.Context, snap *realtime.Snapshot) []models.SubsystemStatus {
	var out []models.SubsystemStatus

	if h.feeds != nil {
		s := models.SubsystemStatus{Name: "feed-store", Status: models.HealthStatusOK}
		statuses, err := h.feeds.Diagnostics(ctx)
		if err != nil {
			s.Status = models.HealthStatusFail
			s.Detail = strPtr(err.Error())
		} else {
			s.Detail = strPtr(strconv.Itoa(len(statuses)) + " stored batches")
		}
		out = append(out, s)
	}

	rt := models.SubsystemStatus{Name: "realtime", Detail: strPtr(string(snap.Status))}
	switch snap.Status {
	case realtime.StatusFresh:
		rt.Status = models.HealthStatusOK
	case realtime.StatusStale:
		rt.Status = models.HealthStatusDegraded
	default:
		rt.Status = models.HealthStatusFail
	}
	out = append(out, rt)

	if h.activeSessions != nil {
		out = append(out, models.SubsystemStatus{
			Name:   "tracking",
			Status: models.HealthStatusOK,
			Detail: strPtr(strconv.Itoa(h.activeSessions()) + " active sessions"),
		})
	}
	return out
}

func (h *OpsHandler) providers() []models.ProviderStatus {
	out := []models.ProviderStatus{}
	if h.registry == nil {
		return out
	}
	for _, ph := range h.registry.GetAllHealth() {
		ps := models.ProviderStatus{
			Provider:      ph.Name,
			CircuitState:  ph.CircuitState.String(),
			Calls:         ph.Calls,
			Failures:      ph.Failures,
			LastSuccessAt: models.TimestampPtr(ph.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(ph.LastFailureAt),
		}
		switch {
		case ph.IsUnhealthy():
			ps.Status = models.HealthStatusFail
		case ph.IsDegraded():
			ps.Status = models.HealthStatusDegraded
		default:
			ps.Status = models.HealthStatusOK
		}
		if ph.Calls > 0 {
			ms := ph.LastLatency.Milliseconds()
			ps.LatencyMs = &ms
		}
		if ph.LastError != "" {
			ps.Message = strPtr(ph.LastError)
		}
		out = append(out, ps)
	}
	return out
}

var healthRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worse(a, b models.HealthStatus) models.HealthStatus {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}

func strPtr(s string) *string {
	return &s
}
