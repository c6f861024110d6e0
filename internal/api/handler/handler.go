// Package handler provides HTTP handlers for the LiveTransit API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/api/models"
	"github.com/livetransit/livetransit/internal/api/response"
	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/planner"
	"github.com/livetransit/livetransit/internal/provider/resilience"
	"github.com/livetransit/livetransit/internal/realtime"
)

// SnapshotLoader loads the current realtime snapshot.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) *realtime.Snapshot
}

// loadSnapshot never returns nil.
func loadSnapshot(ctx context.Context, loader SnapshotLoader, now time.Time) *realtime.Snapshot {
	if loader == nil {
		return realtime.EmptySnapshot(now)
	}
	if snap := loader.LoadSnapshot(ctx); snap != nil {
		return snap
	}
	return realtime.EmptySnapshot(now)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// queryTime parses an optional RFC3339 query parameter.
func queryTime(r *http.Request, name string) (*time.Time, *models.FieldError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &models.FieldError{Field: name, Message: "must be an RFC3339 timestamp", Code: models.CodeInvalidTime}
	}
	return &t, nil
}

// queryInt parses an optional integer query parameter; absent yields 0.
func queryInt(r *http.Request, name string) (int, *models.FieldError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.FieldError{Field: name, Message: "must be an integer", Code: "INTEGER"}
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, *models.FieldError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &models.FieldError{Field: name, Message: "must be true or false", Code: "BOOLEAN"}
	}
	return b, nil
}

// queryModes accepts repeated and comma separated values: modes=train,bus&modes=ferry.
func queryModes(r *http.Request) []journey.Mode {
	var modes []journey.Mode
	for _, raw := range r.URL.Query()["modes"] {
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(strings.ToLower(m)); m != "" {
				modes = append(modes, journey.Mode(m))
			}
		}
	}
	return modes
}

// plannerRetryAfter is how long the planner breaker stays open.
var plannerRetryAfter = resilience.PlannerBreakerConfig("").Timeout

// writePlannerError maps an open planner breaker to 503, other planner failures
// to 502 with their code and anything else to 500.
func writePlannerError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		logger.Warn().Err(err).Msg("planner circuit open")
		response.RetryLater(w, r, "trip planner is temporarily unavailable", plannerRetryAfter)
		return
	}
	if code := planner.CodeOf(err); code != "" {
		logger.Warn().Err(err).Str("code", code).Msg("planner request failed")
		response.BadGateway(w, r, code, err.Error())
		return
	}
	logger.Error().Err(err).Msg("unexpected planner error")
	response.InternalError(w, r, "failed to reach the trip planner")
}

func hasTimeError(errs []models.FieldError) bool {
	for _, e := range errs {
		if e.Code == models.CodeInvalidTime {
			return true
		}
	}
	return false
}

// writeQueryErrors writes a 400 for query parsing errors. Time errors win the
// problem code so clients can tell them apart.
func writeQueryErrors(w http.ResponseWriter, r *http.Request, errs []models.FieldError) {
	code := models.CodeValidation
	detail := "invalid query parameters"
	if hasTimeError(errs) {
		code = models.CodeInvalidTime
		detail = "time must be an RFC3339 timestamp"
	}
	response.BadRequest(w, r, code, detail, errs)
}

func appendErr(errs []models.FieldError, fe *models.FieldError) []models.FieldError {
	if fe != nil {
		return append(errs, *fe)
	}
	return errs
}
