package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/api/models"
	"github.com/livetransit/livetransit/internal/api/response"
	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/planner"
	"github.com/livetransit/livetransit/internal/ranking"
	"github.com/livetransit/livetransit/internal/tracking"
)

// TrackingHandlerConfig holds configuration for the tracking handler.
type TrackingHandlerConfig struct {
	Coordinator *tracking.Coordinator

	// Planner and Snapshots serve starts that name a trip instead of a journey.
	Planner   planner.Planner
	Snapshots SnapshotLoader

	Logger zerolog.Logger
	Now    func() time.Time
}

// TrackingHandler handles live journey tracking endpoints.
type TrackingHandler struct {
	coordinator *tracking.Coordinator
	planner     planner.Planner
	snapshots   SnapshotLoader
	logger      zerolog.Logger
	now         func() time.Time
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(cfg TrackingHandlerConfig) *TrackingHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TrackingHandler{
		coordinator: cfg.Coordinator,
		planner:     cfg.Planner,
		snapshots:   cfg.Snapshots,
		logger:      cfg.Logger.With().Str("component", "tracking_handler").Logger(),
		now:         now,
	}
}

// StartTracking handles POST /v1/tracking/{travelerId} - start tracking a journey.
// Any session already running for the traveler is replaced.
func (h *TrackingHandler) StartTracking(w http.ResponseWriter, r *http.Request) {
	travelerID := chi.URLParam(r, "travelerId")

	var input models.TrackingStartRequest
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, models.CodeValidation, "invalid JSON body", nil)
		return
	}
	if errs := models.Validate(input); errs != nil {
		response.BadRequest(w, r, models.CodeValidation, "either journey or trip is required", errs)
		return
	}

	var j journey.Journey
	if input.Journey != nil {
		j = *input.Journey
	} else {
		selected, ok := h.selectJourney(w, r, input.Trip)
		if !ok {
			return
		}
		j = selected
	}

	status, err := h.coordinator.Start(r.Context(), travelerID, j)
	if errors.Is(err, tracking.ErrEmptyJourney) {
		response.BadRequest(w, r, models.CodeValidation, err.Error(), []models.FieldError{
			{Field: "journey.legs", Message: "is required", Code: "REQUIRED"},
		})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("traveler_id", travelerID).Msg("failed to start tracking")
		response.InternalError(w, r, "failed to start tracking")
		return
	}

	h.logger.Info().
		Str("traveler_id", travelerID).
		Str("activity_id", status.ActivityID.String()).
		Int("legs", len(j.Legs)).
		Msg("tracking started")
	response.Created(w, r, fmt.Sprintf("/v1/tracking/%s", travelerID), status)
}

// selectJourney plans the trip, applies realtime and picks the best journey.
// It writes the error response itself when it returns false.
func (h *TrackingHandler) selectJourney(w http.ResponseWriter, r *http.Request, trip *models.TripSelection) (journey.Journey, bool) {
	strategy, err := ranking.ParseStrategy(trip.Strategy)
	if err != nil {
		response.BadRequest(w, r, models.CodeInvalidStrategy, err.Error(), []models.FieldError{
			{Field: "trip.strategy", Message: "must be one of [best fastest least_walking fewest_transfers]", Code: models.CodeInvalidStrategy},
		})
		return journey.Journey{}, false
	}
	if h.planner == nil {
		response.ServiceUnavailable(w, r, "trip planning is not configured")
		return journey.Journey{}, false
	}

	at := h.now()
	if trip.Time != nil {
		at = trip.Time.Time()
	}
	journeys, err := h.planner.PlanTrip(r.Context(), planner.TripRequest{
		Origin:      trip.Origin,
		Destination: trip.Destination,
		Time:        at,
		ArriveBy:    trip.ArriveBy,
		Modes:       trip.Modes,
	})
	if err != nil {
		writePlannerError(w, r, h.logger, err)
		return journey.Journey{}, false
	}

	result, err := mergeAndRank(journeys, loadSnapshot(r.Context(), h.snapshots, h.now()), strategy)
	if err != nil {
		response.InternalError(w, r, "failed to rank journeys")
		return journey.Journey{}, false
	}
	if result.Best == nil {
		response.NotFound(w, r, models.CodeNotFound, "no journey found for the requested trip")
		return journey.Journey{}, false
	}
	return result.Best.Journey, true
}

// RecordSample handles POST /v1/tracking/{travelerId}/samples - feed a location sample.
func (h *TrackingHandler) RecordSample(w http.ResponseWriter, r *http.Request) {
	travelerID := chi.URLParam(r, "travelerId")

	var input models.SampleRequest
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, models.CodeValidation, "invalid JSON body", nil)
		return
	}
	if errs := models.Validate(input); errs != nil {
		response.BadRequest(w, r, models.CodeValidation, "invalid location sample", errs)
		return
	}

	status, err := h.coordinator.HandleSample(r.Context(), travelerID, input.Sample(h.now()))
	if errors.Is(err, tracking.ErrNoActiveSession) {
		response.NotFound(w, r, models.CodeNoActiveSession, "no active tracking session for traveler")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("traveler_id", travelerID).Msg("failed to handle sample")
		response.InternalError(w, r, "failed to handle location sample")
		return
	}
	response.JSON(w, r, http.StatusOK, status)
}

// GetTracking handles GET /v1/tracking/{travelerId} - current tracking state.
func (h *TrackingHandler) GetTracking(w http.ResponseWriter, r *http.Request) {
	status, err := h.coordinator.State(chi.URLParam(r, "travelerId"))
	if errors.Is(err, tracking.ErrNoActiveSession) {
		response.NotFound(w, r, models.CodeNoActiveSession, "no active tracking session for traveler")
		return
	}
	if err != nil {
		response.InternalError(w, r, "failed to read tracking state")
		return
	}
	response.JSON(w, r, http.StatusOK, status)
}

// StopTracking handles DELETE /v1/tracking/{travelerId} - stop tracking. Idempotent.
func (h *TrackingHandler) StopTracking(w http.ResponseWriter, r *http.Request) {
	travelerID := chi.URLParam(r, "travelerId")
	if err := h.coordinator.Stop(r.Context(), travelerID); err != nil {
		h.logger.Error().Err(err).Str("traveler_id", travelerID).Msg("failed to stop tracking")
		response.InternalError(w, r, "failed to stop tracking")
		return
	}
	response.NoContent(w, r)
}
