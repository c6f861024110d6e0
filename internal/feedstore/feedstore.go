package feedstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/gtfsrt"
)

const keyPrefix = "gtfsrt"

// Default TTLs per feed kind.
const (
	AlertsTTL           = 60 * time.Second
	TripUpdatesTTL      = 30 * time.Second
	VehiclePositionsTTL = 15 * time.Second
)

// DefaultTTLs maps each feed kind to its TTL.
func DefaultTTLs() map[gtfsrt.Kind]time.Duration {
	return map[gtfsrt.Kind]time.Duration{
		gtfsrt.KindAlerts:           AlertsTTL,
		gtfsrt.KindTripUpdates:      TripUpdatesTTL,
		gtfsrt.KindVehiclePositions: VehiclePositionsTTL,
	}
}

// Batch is the most recent decoded payload of one feed and kind.
type Batch struct {
	Feed             string                   `json:"feed"`
	Kind             gtfsrt.Kind              `json:"kind"`
	FetchedAt        time.Time                `json:"fetchedAt"`
	FeedTimestamp    int64                    `json:"feedTimestamp,omitempty"`
	Alerts           []gtfsrt.Alert           `json:"alerts,omitempty"`
	TripUpdates      []gtfsrt.TripUpdate      `json:"tripUpdates,omitempty"`
	VehiclePositions []gtfsrt.VehiclePosition `json:"vehiclePositions,omitempty"`
}

// Count returns the number of records of the batch's kind.
func (b *Batch) Count() int {
	switch b.Kind {
	case gtfsrt.KindAlerts:
		return len(b.Alerts)
	case gtfsrt.KindTripUpdates:
		return len(b.TripUpdates)
	case gtfsrt.KindVehiclePositions:
		return len(b.VehiclePositions)
	default:
		return 0
	}
}

// Age returns how long ago the batch was fetched.
func (b *Batch) Age(now time.Time) time.Duration {
	if age := now.Sub(b.FetchedAt); age > 0 {
		return age
	}
	return 0
}

// FeedStatus describes one stored batch for diagnostics.
type FeedStatus struct {
	Feed      string        `json:"feed"`
	Kind      gtfsrt.Kind   `json:"kind"`
	Count     int           `json:"count"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Age       time.Duration `json:"age"`
}

// Config configures a FeedStore.
type Config struct {
	Store  Store
	TTLs   map[gtfsrt.Kind]time.Duration
	Logger zerolog.Logger
	Now    func() time.Time
}

// FeedStore stores typed feed batches on top of a Store.
// Each feed and kind pair is one key written whole, so readers never observe a partial batch.
type FeedStore struct {
	store  Store
	ttls   map[gtfsrt.Kind]time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a FeedStore.
func New(cfg Config) *FeedStore {
	ttls := DefaultTTLs()
	for k, v := range cfg.TTLs {
		ttls[k] = v
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &FeedStore{
		store:  cfg.Store,
		ttls:   ttls,
		logger: cfg.Logger.With().Str("component", "feedstore").Logger(),
		now:    now,
	}
}

// Key returns the storage key of a feed and kind.
func Key(kind gtfsrt.Kind, feed string) string {
	return keyPrefix + ":" + string(kind) + ":" + feed
}

func kindPrefix(kind gtfsrt.Kind) string {
	return keyPrefix + ":" + string(kind) + ":"
}

// TTL returns the TTL of a kind.
func (s *FeedStore) TTL(kind gtfsrt.Kind) time.Duration {
	return s.ttls[kind]
}

// Put writes a batch under its key.
func (s *FeedStore) Put(ctx context.Context, batch *Batch) error {
	if batch.FetchedAt.IsZero() {
		batch.FetchedAt = s.now()
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch %s/%s: %w", batch.Kind, batch.Feed, err)
	}
	if err := s.store.Set(ctx, Key(batch.Kind, batch.Feed), data, s.ttls[batch.Kind]); err != nil {
		return fmt.Errorf("store batch %s/%s: %w", batch.Kind, batch.Feed, err)
	}
	return nil
}

// Get reads the batch of a feed and kind. A missing or expired batch yields ErrNotFound.
func (s *FeedStore) Get(ctx context.Context, kind gtfsrt.Kind, feed string) (*Batch, error) {
	data, err := s.store.Get(ctx, Key(kind, feed))
	if err != nil {
		return nil, err
	}
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decode batch %s/%s: %w", kind, feed, err)
	}
	return &batch, nil
}

// Feeds returns the names of feeds holding live data of a kind.
func (s *FeedStore) Feeds(ctx context.Context, kind gtfsrt.Kind) ([]string, error) {
	keys, err := s.store.Keys(ctx, kindPrefix(kind))
	if err != nil {
		return nil, err
	}
	feeds := make([]string, 0, len(keys))
	for _, k := range keys {
		feeds = append(feeds, strings.TrimPrefix(k, kindPrefix(kind)))
	}
	return feeds, nil
}

// Batches returns every live batch of a kind, ordered by feed name.
// Keys that expire between listing and reading are skipped.
func (s *FeedStore) Batches(ctx context.Context, kind gtfsrt.Kind) ([]*Batch, error) {
	feeds, err := s.Feeds(ctx, kind)
	if err != nil {
		return nil, err
	}
	sort.Strings(feeds)

	batches := make([]*Batch, 0, len(feeds))
	for _, feed := range feeds {
		b, err := s.Get(ctx, kind, feed)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// Ingest decodes a raw payload and stores it as the feed's latest batch.
// On a decode failure the previous batch is left in place and the *gtfsrt.DecodeError is returned.
func (s *FeedStore) Ingest(ctx context.Context, feed string, kind gtfsrt.Kind, data []byte, format gtfsrt.Format) (*Batch, error) {
	decoded, err := gtfsrt.DecodeFeed(data, format)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("feed", feed).
			Str("kind", string(kind)).
			Msg("feed decode failed, keeping previous batch")
		return nil, err
	}

	batch := &Batch{
		Feed:          feed,
		Kind:          kind,
		FetchedAt:     s.now(),
		FeedTimestamp: decoded.Timestamp,
	}
	switch kind {
	case gtfsrt.KindAlerts:
		batch.Alerts = decoded.Alerts
	case gtfsrt.KindTripUpdates:
		batch.TripUpdates = decoded.TripUpdates
	case gtfsrt.KindVehiclePositions:
		batch.VehiclePositions = decoded.VehiclePositions
	default:
		return nil, fmt.Errorf("unknown feed kind %q", kind)
	}

	if err := s.Put(ctx, batch); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("feed", feed).
		Str("kind", string(kind)).
		Int("count", batch.Count()).
		Msg("feed batch stored")

	return batch, nil
}

// Diagnostics reports count and age of every live batch.
func (s *FeedStore) Diagnostics(ctx context.Context) ([]FeedStatus, error) {
	now := s.now()
	var statuses []FeedStatus
	for _, kind := range gtfsrt.Kinds {
		batches, err := s.Batches(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, b := range batches {
			statuses = append(statuses, FeedStatus{
				Feed:      b.Feed,
				Kind:      b.Kind,
				Count:     b.Count(),
				FetchedAt: b.FetchedAt,
				Age:       b.Age(now),
			})
		}
	}
	return statuses, nil
}
