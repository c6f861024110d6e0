package models

import (
	"time"

	"github.com/livetransit/livetransit/internal/feedstore"
	"github.com/livetransit/livetransit/internal/gtfsrt"
	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/ranking"
	"github.com/livetransit/livetransit/internal/realtime"
)

// TripQuery is the parsed query of GET /v1/trips.
type TripQuery struct {
	Origin      string         `json:"origin" validate:"required"`
	Destination string         `json:"destination" validate:"required"`
	Time        *time.Time     `json:"time,omitempty"`
	ArriveBy    bool           `json:"arriveBy"`
	Strategy    string         `json:"strategy"`
	Modes       []journey.Mode `json:"modes,omitempty" validate:"dive,oneof=train metro light_rail bus coach ferry school_bus"`
	MaxResults  int            `json:"maxResults" validate:"gte=0,lte=10"`
}

// DepartureQuery is the parsed query of GET /v1/departures/{stopId}.
type DepartureQuery struct {
	StopID string     `json:"stopId" validate:"required"`
	Time   *time.Time `json:"time,omitempty"`
	Limit  int        `json:"limit" validate:"gte=0,lte=100"`
}

// RealtimeInfo describes the realtime snapshot a response was built from.
type RealtimeInfo struct {
	Status     realtime.Status `json:"status"`
	AgeSeconds int             `json:"ageSeconds"`
	LoadedAt   Timestamp       `json:"loadedAt"`
}

// NewRealtimeInfo summarizes a snapshot.
func NewRealtimeInfo(snap *realtime.Snapshot) RealtimeInfo {
	return RealtimeInfo{
		Status:     snap.Status,
		AgeSeconds: int(snap.Age.Seconds()),
		LoadedAt:   Timestamp(snap.LoadedAt),
	}
}

// TripsResponse is the body of GET /v1/trips. Best is null when nothing was found.
type TripsResponse struct {
	GeneratedAt  Timestamp               `json:"generatedAt"`
	Strategy     ranking.Strategy        `json:"strategy"`
	Best         *ranking.RankedJourney  `json:"best"`
	Alternatives []ranking.RankedJourney `json:"alternatives"`
	TotalOptions int                     `json:"totalOptions"`
	Realtime     RealtimeInfo            `json:"realtime"`
}

// DeparturesResponse is the body of GET /v1/departures/{stopId}.
type DeparturesResponse struct {
	GeneratedAt Timestamp           `json:"generatedAt"`
	StopID      string              `json:"stopId"`
	Departures  []journey.Departure `json:"departures"`
	Alerts      []gtfsrt.Alert      `json:"alerts"`
	Realtime    RealtimeInfo        `json:"realtime"`
}

// AlertsResponse is the body of GET /v1/alerts.
type AlertsResponse struct {
	GeneratedAt Timestamp      `json:"generatedAt"`
	Count       int            `json:"count"`
	Alerts      []gtfsrt.Alert `json:"alerts"`
	Realtime    RealtimeInfo   `json:"realtime"`
}

// FeedStatus is one stored feed batch.
type FeedStatus struct {
	Feed       string      `json:"feed"`
	Kind       gtfsrt.Kind `json:"kind"`
	Count      int         `json:"count"`
	FetchedAt  Timestamp   `json:"fetchedAt"`
	AgeSeconds int         `json:"ageSeconds"`
}

// NewFeedStatuses converts feed store diagnostics.
func NewFeedStatuses(in []feedstore.FeedStatus) []FeedStatus {
	out := make([]FeedStatus, 0, len(in))
	for _, s := range in {
		out = append(out, FeedStatus{
			Feed:       s.Feed,
			Kind:       s.Kind,
			Count:      s.Count,
			FetchedAt:  Timestamp(s.FetchedAt),
			AgeSeconds: int(s.Age.Seconds()),
		})
	}
	return out
}

// FeedsResponse is the body of GET /v1/feeds.
type FeedsResponse struct {
	GeneratedAt Timestamp              `json:"generatedAt"`
	Realtime    RealtimeInfo           `json:"realtime"`
	Feeds       []FeedStatus           `json:"feeds"`
	Refresh     map[string]interface{} `json:"refresh,omitempty"`
}
