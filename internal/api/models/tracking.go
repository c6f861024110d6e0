package models

import (
	"time"

	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/tracking"
)

// TripSelection asks the server to plan a trip and track its best option.
type TripSelection struct {
	Origin      string         `json:"origin" validate:"required"`
	Destination string         `json:"destination" validate:"required"`
	Time        *Timestamp     `json:"time,omitempty"`
	ArriveBy    bool           `json:"arriveBy"`
	Strategy    string         `json:"strategy,omitempty"`
	Modes       []journey.Mode `json:"modes,omitempty" validate:"dive,oneof=train metro light_rail bus coach ferry school_bus"`
}

// TrackingStartRequest is the body of POST /v1/tracking/{travelerId}.
// Exactly one of Journey or Trip is used; Journey wins when both are set.
type TrackingStartRequest struct {
	Journey *journey.Journey `json:"journey,omitempty"`
	Trip    *TripSelection   `json:"trip,omitempty" validate:"required_without=Journey"`
}

// SampleRequest is the body of POST /v1/tracking/{travelerId}/samples.
type SampleRequest struct {
	Location  Point      `json:"location"`
	Speed     *float64   `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// Sample converts the request, defaulting the timestamp to now.
func (r SampleRequest) Sample(now time.Time) tracking.Sample {
	ts := now
	if r.Timestamp != nil {
		ts = r.Timestamp.Time()
	}
	return tracking.Sample{
		Location:  r.Location.GeoPoint(),
		Speed:     r.Speed,
		Timestamp: ts,
	}
}
