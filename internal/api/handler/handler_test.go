package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/livetransit/livetransit/internal/feedstore"
	"github.com/livetransit/livetransit/internal/gtfsrt"
	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/journey/journeytest"
	"github.com/livetransit/livetransit/internal/planner"
	"github.com/livetransit/livetransit/internal/realtime"
)

// fakePlanner returns canned journeys and departures and records the last requests.
type fakePlanner struct {
	mu         sync.Mutex
	journeys   []journey.Journey
	departures []journey.Departure
	err        error

	lastTrip      planner.TripRequest
	lastDeparture planner.DepartureRequest
}

func (p *fakePlanner) PlanTrip(_ context.Context, req planner.TripRequest) ([]journey.Journey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastTrip = req
	return p.journeys, p.err
}

func (p *fakePlanner) Departures(_ context.Context, req planner.DepartureRequest) ([]journey.Departure, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastDeparture = req
	return p.departures, p.err
}

func (p *fakePlanner) Name() string { return "fake" }

// staticSnapshots always serves the same snapshot.
type staticSnapshots struct {
	snap *realtime.Snapshot
}

func (s staticSnapshots) LoadSnapshot(context.Context) *realtime.Snapshot {
	return s.snap
}

func now() time.Time { return journeytest.Base }

func i32(v int32) *int32 { return &v }

// freshSnapshot builds a fresh snapshot from trip updates and alerts fetched at Base.
func freshSnapshot(updates []gtfsrt.TripUpdate, alerts []gtfsrt.Alert) *realtime.Snapshot {
	tu := &feedstore.Batch{Feed: "sydneytrains", Kind: gtfsrt.KindTripUpdates, FetchedAt: now(), TripUpdates: updates}
	al := &feedstore.Batch{Feed: "sydneytrains", Kind: gtfsrt.KindAlerts, FetchedAt: now(), Alerts: alerts}
	return realtime.NewSnapshot(now(), 0, tu, al)
}

// serve routes a request through a chi router so URL parameters resolve.
func serve(method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}
