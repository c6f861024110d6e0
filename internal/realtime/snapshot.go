// Package realtime overlays cached GTFS-realtime state onto planned journeys and departures.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/feedstore"
	"github.com/livetransit/livetransit/internal/gtfsrt"
)

// Status is the freshness of a realtime snapshot.
type Status string

const (
	StatusFresh       Status = "fresh"
	StatusStale       Status = "stale"
	StatusUnavailable Status = "unavailable"
)

// DefaultFreshThreshold is the age under which realtime data counts as fresh.
const DefaultFreshThreshold = 60 * time.Second

// FeedAge is the recorded fetch age of one stored batch.
type FeedAge struct {
	Feed  string        `json:"feed"`
	Kind  gtfsrt.Kind   `json:"kind"`
	Count int           `json:"count"`
	Age   time.Duration `json:"age"`
}

// Snapshot is a point-in-time view of all cached realtime feeds.
type Snapshot struct {
	Status           Status
	Age              time.Duration
	LoadedAt         time.Time
	Alerts           []gtfsrt.Alert
	TripUpdates      []gtfsrt.TripUpdate
	VehiclePositions []gtfsrt.VehiclePosition
	Feeds            []FeedAge

	tripIndex map[string]int
}

// EmptySnapshot returns an unavailable snapshot with no data.
func EmptySnapshot(now time.Time) *Snapshot {
	return &Snapshot{Status: StatusUnavailable, LoadedAt: now, tripIndex: map[string]int{}}
}

// NewSnapshot aggregates stored batches. Freshness is computed from the oldest
// trip-update or vehicle-position batch. Without trip-update batches the
// snapshot is unavailable.
func NewSnapshot(now time.Time, freshThreshold time.Duration, batches ...*feedstore.Batch) *Snapshot {
	if freshThreshold <= 0 {
		freshThreshold = DefaultFreshThreshold
	}

	snap := EmptySnapshot(now)
	hasTripUpdates := false
	var oldest time.Duration

	for _, b := range batches {
		if b == nil {
			continue
		}
		age := b.Age(now)
		snap.Feeds = append(snap.Feeds, FeedAge{Feed: b.Feed, Kind: b.Kind, Count: b.Count(), Age: age})

		switch b.Kind {
		case gtfsrt.KindAlerts:
			snap.Alerts = append(snap.Alerts, b.Alerts...)
			continue
		case gtfsrt.KindTripUpdates:
			hasTripUpdates = true
			snap.TripUpdates = append(snap.TripUpdates, b.TripUpdates...)
		case gtfsrt.KindVehiclePositions:
			snap.VehiclePositions = append(snap.VehiclePositions, b.VehiclePositions...)
		}
		if age > oldest {
			oldest = age
		}
	}

	for i := range snap.TripUpdates {
		id := snap.TripUpdates[i].Trip.TripID
		if id == "" {
			continue
		}
		if _, seen := snap.tripIndex[id]; !seen {
			snap.tripIndex[id] = i
		}
	}

	if !hasTripUpdates {
		return snap
	}

	snap.Age = oldest
	if oldest < freshThreshold {
		snap.Status = StatusFresh
	} else {
		snap.Status = StatusStale
	}
	return snap
}

// TripUpdate returns the trip update with the given trip id.
func (s *Snapshot) TripUpdate(tripID string) (*gtfsrt.TripUpdate, bool) {
	if s == nil || tripID == "" {
		return nil, false
	}
	i, ok := s.tripIndex[tripID]
	if !ok {
		return nil, false
	}
	return &s.TripUpdates[i], true
}

// ActiveAlerts returns the alerts active at the snapshot's load time.
func (s *Snapshot) ActiveAlerts() []gtfsrt.Alert {
	if s == nil {
		return nil
	}
	active := make([]gtfsrt.Alert, 0, len(s.Alerts))
	for i := range s.Alerts {
		if s.Alerts[i].IsActiveAt(s.LoadedAt) {
			active = append(active, s.Alerts[i])
		}
	}
	return active
}

// MergerConfig configures a Merger.
type MergerConfig struct {
	Store  *feedstore.FeedStore
	Logger zerolog.Logger

	// FreshThreshold is the age below which data is fresh (default: 60s).
	FreshThreshold time.Duration

	// CacheTTL reuses a loaded snapshot for this long. Zero disables caching.
	CacheTTL time.Duration

	Now func() time.Time
}

// Merger loads realtime snapshots from the feed store.
type Merger struct {
	store          *feedstore.FeedStore
	logger         zerolog.Logger
	freshThreshold time.Duration
	cacheTTL       time.Duration
	now            func() time.Time

	mu     sync.RWMutex
	cached *Snapshot
}

// NewMerger creates a Merger.
func NewMerger(cfg MergerConfig) *Merger {
	threshold := cfg.FreshThreshold
	if threshold == 0 {
		threshold = DefaultFreshThreshold
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Merger{
		store:          cfg.Store,
		logger:         cfg.Logger.With().Str("component", "realtime").Logger(),
		freshThreshold: threshold,
		cacheTTL:       cfg.CacheTTL,
		now:            now,
	}
}

// LoadSnapshot aggregates every cached feed. Store failures degrade to an
// unavailable snapshot instead of an error.
func (m *Merger) LoadSnapshot(ctx context.Context) *Snapshot {
	now := m.now()

	if m.cacheTTL > 0 {
		m.mu.RLock()
		cached := m.cached
		m.mu.RUnlock()
		if cached != nil && now.Sub(cached.LoadedAt) < m.cacheTTL {
			return cached
		}
	}

	if m.store == nil {
		return EmptySnapshot(now)
	}

	var batches []*feedstore.Batch
	for _, kind := range gtfsrt.Kinds {
		kindBatches, err := m.store.Batches(ctx, kind)
		if err != nil {
			m.logger.Warn().Err(err).Str("kind", string(kind)).Msg("failed to load realtime batches")
			return EmptySnapshot(now)
		}
		batches = append(batches, kindBatches...)
	}

	snap := NewSnapshot(now, m.freshThreshold, batches...)

	m.logger.Debug().
		Str("status", string(snap.Status)).
		Dur("age", snap.Age).
		Int("trip_updates", len(snap.TripUpdates)).
		Int("vehicle_positions", len(snap.VehiclePositions)).
		Int("alerts", len(snap.Alerts)).
		Msg("realtime snapshot loaded")

	if m.cacheTTL > 0 {
		m.mu.Lock()
		m.cached = snap
		m.mu.Unlock()
	}

	return snap
}
