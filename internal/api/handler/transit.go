package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/api/models"
	"github.com/livetransit/livetransit/internal/api/response"
	"github.com/livetransit/livetransit/internal/gtfsrt"
	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/planner"
	"github.com/livetransit/livetransit/internal/ranking"
	"github.com/livetransit/livetransit/internal/realtime"
)

// TransitHandlerConfig holds configuration for the transit handler.
type TransitHandlerConfig struct {
	Planner   planner.Planner
	Snapshots SnapshotLoader
	Logger    zerolog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// TransitHandler handles trip planning, departure and alert endpoints.
type TransitHandler struct {
	planner   planner.Planner
	snapshots SnapshotLoader
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTransitHandler creates a new TransitHandler.
func NewTransitHandler(cfg TransitHandlerConfig) *TransitHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TransitHandler{
		planner:   cfg.Planner,
		snapshots: cfg.Snapshots,
		logger:    cfg.Logger.With().Str("component", "transit_handler").Logger(),
		now:       now,
	}
}

// PlanTrips handles GET /v1/trips - plan, merge realtime and rank journeys.
func (h *TransitHandler) PlanTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.TripQuery{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Strategy:    q.Get("strategy"),
		Modes:       queryModes(r),
	}

	var errs []models.FieldError
	var fe *models.FieldError
	query.Time, fe = queryTime(r, "time")
	errs = appendErr(errs, fe)
	query.ArriveBy, fe = queryBool(r, "arriveBy")
	errs = appendErr(errs, fe)
	query.MaxResults, fe = queryInt(r, "maxResults")
	errs = appendErr(errs, fe)
	if len(errs) > 0 {
		writeQueryErrors(w, r, errs)
		return
	}
	if errs := models.Validate(query); errs != nil {
		response.BadRequest(w, r, models.CodeValidation, "invalid trip query", errs)
		return
	}

	strategy, err := ranking.ParseStrategy(query.Strategy)
	if err != nil {
		response.BadRequest(w, r, models.CodeInvalidStrategy, err.Error(), []models.FieldError{
			{Field: "strategy", Message: "must be one of [best fastest least_walking fewest_transfers]", Code: models.CodeInvalidStrategy},
		})
		return
	}

	journeys, err := h.plan(r, query)
	if err != nil {
		writePlannerError(w, r, h.logger, err)
		return
	}

	snap := loadSnapshot(r.Context(), h.snapshots, h.now())
	result, err := mergeAndRank(journeys, snap, strategy)
	if err != nil {
		h.logger.Error().Err(err).Msg("ranking failed")
		response.InternalError(w, r, "failed to rank journeys")
		return
	}

	alternatives := result.Alternatives
	if alternatives == nil {
		alternatives = []ranking.RankedJourney{}
	}
	response.JSON(w, r, http.StatusOK, models.TripsResponse{
		GeneratedAt:  models.Timestamp(h.now()),
		Strategy:     result.Strategy,
		Best:         result.Best,
		Alternatives: alternatives,
		TotalOptions: result.TotalOptions,
		Realtime:     models.NewRealtimeInfo(snap),
	})
}

func (h *TransitHandler) plan(r *http.Request, query models.TripQuery) ([]journey.Journey, error) {
	at := h.now()
	if query.Time != nil {
		at = *query.Time
	}
	return h.planner.PlanTrip(r.Context(), planner.TripRequest{
		Origin:      query.Origin,
		Destination: query.Destination,
		Time:        at,
		ArriveBy:    query.ArriveBy,
		Modes:       query.Modes,
		MaxResults:  query.MaxResults,
	})
}

// mergeAndRank applies the snapshot to every journey and ranks the result.
func mergeAndRank(journeys []journey.Journey, snap *realtime.Snapshot, strategy ranking.Strategy) (ranking.Result, error) {
	merged := make([]journey.Journey, len(journeys))
	for i := range journeys {
		merged[i] = realtime.MergeJourney(journeys[i], snap)
	}
	return ranking.RankAndSelect(merged, strategy)
}

// Departures handles GET /v1/departures/{stopId} - realtime departure board.
func (h *TransitHandler) Departures(w http.ResponseWriter, r *http.Request) {
	query := models.DepartureQuery{StopID: chi.URLParam(r, "stopId")}

	var errs []models.FieldError
	var fe *models.FieldError
	query.Time, fe = queryTime(r, "time")
	errs = appendErr(errs, fe)
	query.Limit, fe = queryInt(r, "limit")
	errs = appendErr(errs, fe)
	if len(errs) > 0 {
		writeQueryErrors(w, r, errs)
		return
	}
	if errs := models.Validate(query); errs != nil {
		response.BadRequest(w, r, models.CodeValidation, "invalid departure query", errs)
		return
	}

	at := h.now()
	if query.Time != nil {
		at = *query.Time
	}
	deps, err := h.planner.Departures(r.Context(), planner.DepartureRequest{
		StopID: query.StopID,
		Time:   at,
		Limit:  query.Limit,
	})
	if err != nil {
		writePlannerError(w, r, h.logger, err)
		return
	}

	snap := loadSnapshot(r.Context(), h.snapshots, h.now())
	deps = realtime.MergeDepartures(deps, snap)
	if query.Limit > 0 && len(deps) > query.Limit {
		deps = deps[:query.Limit]
	}
	if deps == nil {
		deps = []journey.Departure{}
	}

	response.JSON(w, r, http.StatusOK, models.DeparturesResponse{
		GeneratedAt: models.Timestamp(h.now()),
		StopID:      query.StopID,
		Departures:  deps,
		Alerts:      nonNilAlerts(realtime.FilterAlerts(snap.ActiveAlerts(), "", query.StopID)),
		Realtime:    models.NewRealtimeInfo(snap),
	})
}

// Alerts handles GET /v1/alerts - active alerts, optionally filtered by route or stop.
func (h *TransitHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	snap := loadSnapshot(r.Context(), h.snapshots, h.now())
	alerts := nonNilAlerts(realtime.FilterAlerts(snap.ActiveAlerts(), r.URL.Query().Get("route"), r.URL.Query().Get("stop")))

	response.JSON(w, r, http.StatusOK, models.AlertsResponse{
		GeneratedAt: models.Timestamp(h.now()),
		Count:       len(alerts),
		Alerts:      alerts,
		Realtime:    models.NewRealtimeInfo(snap),
	})
}

func nonNilAlerts(alerts []gtfsrt.Alert) []gtfsrt.Alert {
	if alerts == nil {
		return []gtfsrt.Alert{}
	}
	return alerts
}
