// Package gtfsrt decodes GTFS-realtime feeds into typed records.
package gtfsrt

import "time"

// Kind identifies the entity type carried by a feed.
type Kind string

const (
	KindAlerts           Kind = "alerts"
	KindTripUpdates      Kind = "trip_updates"
	KindVehiclePositions Kind = "vehicle_positions"
)

// Kinds lists every feed kind in polling order.
var Kinds = []Kind{KindTripUpdates, KindVehiclePositions, KindAlerts}

// Feed is a decoded FeedMessage.
type Feed struct {
	Timestamp        int64             `json:"timestamp"`
	Alerts           []Alert           `json:"alerts,omitempty"`
	TripUpdates      []TripUpdate      `json:"tripUpdates,omitempty"`
	VehiclePositions []VehiclePosition `json:"vehiclePositions,omitempty"`
}

// TimeRange is an alert active period in unix seconds. A zero bound is open.
type TimeRange struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	ts := t.Unix()
	if r.Start != 0 && ts < r.Start {
		return false
	}
	if r.End != 0 && ts > r.End {
		return false
	}
	return true
}

// InformedEntity is one entity selector of an alert. Any subset of fields may be set.
type InformedEntity struct {
	AgencyID    string `json:"agencyId,omitempty"`
	RouteID     string `json:"routeId,omitempty"`
	StopID      string `json:"stopId,omitempty"`
	TripID      string `json:"tripId,omitempty"`
	DirectionID *int32 `json:"directionId,omitempty"`
}

// Alert is a service disruption.
type Alert struct {
	ID               string           `json:"id"`
	HeaderText       string           `json:"headerText"`
	DescriptionText  string           `json:"descriptionText,omitempty"`
	URL              string           `json:"url,omitempty"`
	Cause            Cause            `json:"cause"`
	Effect           Effect           `json:"effect"`
	Severity         Severity         `json:"severity"`
	ActivePeriods    []TimeRange      `json:"activePeriods,omitempty"`
	InformedEntities []InformedEntity `json:"informedEntities,omitempty"`
	Timestamp        int64            `json:"timestamp,omitempty"`
}

// IsActiveAt reports whether the alert applies at t.
// An alert without active periods is always active.
func (a *Alert) IsActiveAt(t time.Time) bool {
	if len(a.ActivePeriods) == 0 {
		return true
	}
	for _, p := range a.ActivePeriods {
		if p.Contains(t) {
			return true
		}
	}
	return false
}

// TripDescriptor identifies a trip instance.
type TripDescriptor struct {
	TripID               string               `json:"tripId,omitempty"`
	RouteID              string               `json:"routeId,omitempty"`
	DirectionID          *int32               `json:"directionId,omitempty"`
	StartDate            string               `json:"startDate,omitempty"`
	StartTime            string               `json:"startTime,omitempty"`
	ScheduleRelationship ScheduleRelationship `json:"scheduleRelationship"`
}

// VehicleDescriptor identifies a physical vehicle.
type VehicleDescriptor struct {
	ID           string `json:"id,omitempty"`
	Label        string `json:"label,omitempty"`
	LicensePlate string `json:"licensePlate,omitempty"`
}

// StopTimeEvent is a predicted arrival or departure.
type StopTimeEvent struct {
	Delay       *int32 `json:"delay,omitempty"`
	Time        *int64 `json:"time,omitempty"`
	Uncertainty *int32 `json:"uncertainty,omitempty"`
}

// StopTimeUpdate is the realtime state of one stop of a trip.
type StopTimeUpdate struct {
	StopSequence         *uint32                      `json:"stopSequence,omitempty"`
	StopID               string                       `json:"stopId,omitempty"`
	Arrival              *StopTimeEvent               `json:"arrival,omitempty"`
	Departure            *StopTimeEvent               `json:"departure,omitempty"`
	ScheduleRelationship StopTimeScheduleRelationship `json:"scheduleRelationship"`
}

// TripUpdate is the realtime state of one scheduled trip.
type TripUpdate struct {
	ID              string             `json:"id,omitempty"`
	Trip            TripDescriptor     `json:"trip"`
	Vehicle         *VehicleDescriptor `json:"vehicle,omitempty"`
	StopTimeUpdates []StopTimeUpdate   `json:"stopTimeUpdates,omitempty"`
	Delay           *int32             `json:"delay,omitempty"`
	Timestamp       int64              `json:"timestamp,omitempty"`
}

// IsCanceled reports whether the trip was cancelled.
func (t *TripUpdate) IsCanceled() bool {
	return t.Trip.ScheduleRelationship == ScheduleCanceled
}

// DelaySeconds returns the trip delay: the trip-level delay, else the first
// stop-time update's departure delay, else its arrival delay, else 0.
// A cancelled trip has no delay.
func (t *TripUpdate) DelaySeconds() int {
	if t.IsCanceled() {
		return 0
	}
	if t.Delay != nil {
		return int(*t.Delay)
	}
	if len(t.StopTimeUpdates) == 0 {
		return 0
	}
	first := t.StopTimeUpdates[0]
	if first.Departure != nil && first.Departure.Delay != nil {
		return int(*first.Departure.Delay)
	}
	if first.Arrival != nil && first.Arrival.Delay != nil {
		return int(*first.Arrival.Delay)
	}
	return 0
}

// Position is a vehicle location.
type Position struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Bearing   *float64 `json:"bearing,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Odometer  *float64 `json:"odometer,omitempty"`
}

// VehiclePosition is the last known location of a vehicle.
type VehiclePosition struct {
	ID                  string             `json:"id,omitempty"`
	Trip                *TripDescriptor    `json:"trip,omitempty"`
	Vehicle             *VehicleDescriptor `json:"vehicle,omitempty"`
	Position            *Position          `json:"position,omitempty"`
	CurrentStopSequence *uint32            `json:"currentStopSequence,omitempty"`
	StopID              string             `json:"stopId,omitempty"`
	CurrentStatus       VehicleStopStatus  `json:"currentStatus"`
	OccupancyStatus     OccupancyStatus    `json:"occupancyStatus"`
	CongestionLevel     CongestionLevel    `json:"congestionLevel"`
	Timestamp           int64              `json:"timestamp,omitempty"`
}
