// Package planner defines the upstream trip planner used to obtain journeys and departure boards.
package planner

import (
	"context"
	"errors"
	"time"

	"github.com/livetransit/livetransit/internal/journey"
)

// Predefined errors for planner operations.
var (
	// ErrPlanningFailed is returned when the planner rejected the request or returned an error message.
	ErrPlanningFailed = errors.New("trip planning failed")

	// ErrFetchFailed is returned when the planner could not be reached or answered with a server error.
	ErrFetchFailed = errors.New("trip planner unavailable")
)

// Error codes carried by *Error.
const (
	CodePlanningFailed = "PLANNING_FAILED"
	CodeFetchFailed    = "FETCH_FAILED"
)

// Planner plans journeys and lists departures.
type Planner interface {
	// PlanTrip returns the journeys the planner proposes for a request. An empty
	// slice with a nil error means no journey was found.
	PlanTrip(ctx context.Context, req TripRequest) ([]journey.Journey, error)

	// Departures returns upcoming stop events at a stop.
	Departures(ctx context.Context, req DepartureRequest) ([]journey.Departure, error)

	// Name returns the planner name.
	Name() string
}

// TripRequest describes a trip query. Origin and Destination are stop ids or
// "lat,lon" coordinates.
type TripRequest struct {
	Origin      string
	Destination string
	Time        time.Time
	ArriveBy    bool
	Modes       []journey.Mode
	MaxResults  int
}

// DepartureRequest describes a departure board query.
type DepartureRequest struct {
	StopID string
	Time   time.Time
	Limit  int
}

// Error provides detailed error information from the planner.
type Error struct {
	Code    string // PLANNING_FAILED or FETCH_FAILED
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the code.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodePlanningFailed:
		return target == ErrPlanningFailed
	case CodeFetchFailed:
		return target == ErrFetchFailed
	}
	return false
}

// PlanningFailed returns an error with code PLANNING_FAILED.
func PlanningFailed(message string, err error) *Error {
	return &Error{Code: CodePlanningFailed, Message: message, Err: err}
}

// FetchFailed returns an error with code FETCH_FAILED.
func FetchFailed(message string, err error) *Error {
	return &Error{Code: CodeFetchFailed, Message: message, Err: err}
}

// CodeOf returns the planner error code of err, or "" if err is not a planner error.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	switch {
	case errors.Is(err, ErrPlanningFailed):
		return CodePlanningFailed
	case errors.Is(err, ErrFetchFailed):
		return CodeFetchFailed
	}
	return ""
}
