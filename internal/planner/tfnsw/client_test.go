package tfnsw_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/planner"
	"github.com/livetransit/livetransit/internal/planner/tfnsw"
	"github.com/livetransit/livetransit/internal/provider/resilience"
)

func newClient(t *testing.T, handler http.HandlerFunc) *tfnsw.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := resilience.PlannerClientConfig("tfnsw-test")
	cfg.MaxRetries = 1
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = time.Millisecond

	return tfnsw.NewClient(tfnsw.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(cfg),
		Location:   time.UTC,
		Logger:     zerolog.Nop(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var tripBody = map[string]any{
	"version": "10.2.1.42",
	"journeys": []map[string]any{
		{
			"interchanges": 0,
			"legs": []map[string]any{
				{
					"duration": 300,
					"origin": map[string]any{
						"name":                 "-33.880500, 151.207000",
						"type":                 "coord",
						"coord":                []float64{-33.8805, 151.2070},
						"departureTimePlanned": "2024-05-01T08:00:00Z",
					},
					"destination": map[string]any{
						"id":                 "2000334",
						"name":               "Central Station, Platform 16, Sydney",
						"disassembledName":   "Platform 16",
						"type":               "platform",
						"coord":              []float64{-33.8832, 151.2070},
						"arrivalTimePlanned": "2024-05-01T08:05:00Z",
						"parent": map[string]any{
							"id":   "200060",
							"name": "Central Station, Sydney",
							"type": "stop",
						},
					},
					"transportation": map[string]any{
						"product": map[string]any{"class": 100, "name": "footpath", "iconId": 100},
					},
					"footPathInfo": []map[string]any{{"position": "IDEST", "duration": 200}},
				},
				{
					"duration":             600,
					"distance":             4200,
					"isRealtimeControlled": true,
					"origin": map[string]any{
						"id":                     "2000334",
						"name":                   "Central Station, Platform 16, Sydney",
						"coord":                  []float64{-33.8832, 151.2070},
						"departureTimePlanned":   "2024-05-01T08:08:00Z",
						"departureTimeEstimated": "2024-05-01T08:10:00Z",
					},
					"destination": map[string]any{
						"id":                   "206010",
						"name":                 "North Sydney Station",
						"coord":                []float64{-33.8472, 151.2070},
						"arrivalTimePlanned":   "2024-05-01T08:18:00Z",
						"arrivalTimeEstimated": "2024-05-01T08:20:00Z",
					},
					"transportation": map[string]any{
						"id":               "nsw:020T1: :H:sj2",
						"name":             "Sydney Trains Network T1 North Shore & Western Line",
						"disassembledName": "T1",
						"number":           "T1 North Shore & Western Line",
						"product":          map[string]any{"class": 1, "name": "Sydney Trains Network", "iconId": 1},
						"operator":         map[string]any{"id": "x0001", "name": "Sydney Trains"},
						"destination":      map[string]any{"id": "10101100", "name": "Hornsby"},
						"properties": map[string]any{
							"RealtimeTripId": "178-T.1297.128.20.A.8.80562591",
							"tripCode":       1297,
							"isTTB":          true,
							"lineDisplay":    []string{"ignored"},
						},
					},
					"stopSequence": []map[string]any{
						{"id": "2000334", "name": "Central", "coord": []float64{-33.8832, 151.2070}, "departureTimePlanned": "2024-05-01T08:08:00Z"},
						{"id": "2000340", "name": "Town Hall", "coord": []float64{-33.8742, 151.2070}, "arrivalTimePlanned": "2024-05-01T08:11:00Z"},
						{"id": "206010", "name": "North Sydney", "coord": []float64{-33.8472, 151.2070}, "arrivalTimePlanned": "2024-05-01T08:18:00Z"},
					},
					"coords": [][]float64{{-33.8832, 151.2070}, {-33.8742, 151.2070}, {-33.8472, 151.2070}},
				},
			},
			"fare": map[string]any{
				"tickets": []map[string]any{
					{"id": "ADULT", "name": "Opal tickets", "person": "ADULT", "priceBrutto": 4.2},
				},
			},
		},
	},
}

func TestClient_Name(t *testing.T) {
	client := tfnsw.NewClient(tfnsw.ClientConfig{APIKey: "****", Logger: zerolog.Nop()})
	assert.Equal(t, "tfnsw", client.Name())
}

func TestClient_PlanTrip(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tp/trip", r.URL.Path)
		assert.Equal(t, "apikey ****", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "rapidJSON", q.Get("outputFormat"))
		assert.Equal(t, "EPSG:4326", q.Get("coordOutputFormat"))
		assert.Equal(t, "coord", q.Get("type_origin"))
		assert.Equal(t, "151.207000:-33.880500:EPSG:4326", q.Get("name_origin"))
		assert.Equal(t, "any", q.Get("type_destination"))
		assert.Equal(t, "206010", q.Get("name_destination"))
		assert.Equal(t, "20240501", q.Get("itdDate"))
		assert.Equal(t, "0800", q.Get("itdTime"))
		assert.Equal(t, "dep", q.Get("depArrMacro"))
		assert.Equal(t, "6", q.Get("calcNumberOfTrips"))

		writeJSON(w, tripBody)
	})

	journeys, err := client.PlanTrip(context.Background(), planner.TripRequest{
		Origin:      "-33.8805,151.2070",
		Destination: "206010",
		Time:        time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, journeys, 1)

	j := journeys[0]
	require.Len(t, j.Legs, 2)
	require.NotNil(t, j.Fare)
	assert.Equal(t, 4.2, j.Fare.Tickets[0].PriceBrutto)

	walk := j.Legs[0]
	assert.True(t, walk.IsWalking())
	assert.Equal(t, 280, walk.Distance, "footpath duration converted at walking speed")
	assert.Equal(t, "200060", walk.Destination.ParentID)
	require.NotNil(t, walk.Destination.Coord)
	assert.Equal(t, -33.8832, walk.Destination.Coord.Lat)

	train := j.Legs[1]
	assert.False(t, train.IsWalking())
	require.NotNil(t, train.Transportation)
	assert.Equal(t, journey.ModeTrain, train.Transportation.Mode())
	assert.Equal(t, "T1", train.Transportation.Line())
	assert.Equal(t, "Sydney Trains", train.Transportation.Operator)
	assert.Equal(t, "Hornsby", train.Transportation.DestinationName)
	assert.Equal(t, "178-T.1297.128.20.A.8.80562591", train.Transportation.Properties["RealtimeTripId"])
	assert.Equal(t, "1297", train.Transportation.Properties["tripCode"])
	assert.Equal(t, "true", train.Transportation.Properties["isTTB"])
	assert.NotContains(t, train.Transportation.Properties, "lineDisplay")
	assert.True(t, train.IsRealtimeControlled)
	assert.Len(t, train.StopSequence, 3)
	assert.Len(t, train.Coords, 3)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 10, 0, 0, time.UTC), *train.Origin.EffectiveDeparture())
	assert.Equal(t, time.Date(2024, 5, 1, 8, 20, 0, 0, time.UTC), *j.ArrivalTime())
}

func TestClient_PlanTrip_ArriveByAndModes(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "arr", q.Get("depArrMacro"))
		assert.Equal(t, "checkbox", q.Get("excludedMeans"))
		assert.Empty(t, q.Get("exclMOT_1"))
		assert.Empty(t, q.Get("exclMOT_2"))
		assert.Equal(t, "1", q.Get("exclMOT_5"))
		assert.Equal(t, "1", q.Get("exclMOT_9"))
		assert.Equal(t, "3", q.Get("calcNumberOfTrips"))
		writeJSON(w, map[string]any{"journeys": []any{}})
	})

	journeys, err := client.PlanTrip(context.Background(), planner.TripRequest{
		Origin:      "200060",
		Destination: "206010",
		ArriveBy:    true,
		Modes:       []journey.Mode{journey.ModeTrain, journey.ModeMetro},
		MaxResults:  3,
	})
	require.NoError(t, err)
	assert.Empty(t, journeys)
	assert.NotNil(t, journeys)
}

func TestClient_PlanTrip_NoConnectionIsNotAnError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"journeys": []any{},
			"systemMessages": []map[string]any{
				{"type": "error", "module": "BROKER", "code": -8011, "text": ""},
			},
		})
	})

	journeys, err := client.PlanTrip(context.Background(), planner.TripRequest{Origin: "200060", Destination: "206010"})
	require.NoError(t, err)
	assert.Empty(t, journeys)
}

func TestClient_PlanTrip_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		sentinel error
		code     string
	}{
		{
			name: "planner error message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, map[string]any{
					"systemMessages": []map[string]any{
						{"type": "error", "module": "BROKER", "code": -2801, "text": "origin could not be resolved"},
					},
				})
			},
			sentinel: planner.ErrPlanningFailed,
			code:     planner.CodePlanningFailed,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			sentinel: planner.ErrPlanningFailed,
			code:     planner.CodePlanningFailed,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			sentinel: planner.ErrFetchFailed,
			code:     planner.CodeFetchFailed,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			sentinel: planner.ErrFetchFailed,
			code:     planner.CodeFetchFailed,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			sentinel: planner.ErrFetchFailed,
			code:     planner.CodeFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, tt.handler)
			_, err := client.PlanTrip(context.Background(), planner.TripRequest{Origin: "200060", Destination: "206010"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.code, planner.CodeOf(err))
		})
	}
}

func TestClient_PlanTrip_RequiresPlaces(t *testing.T) {
	client := tfnsw.NewClient(tfnsw.ClientConfig{APIKey: "****", Logger: zerolog.Nop()})
	_, err := client.PlanTrip(context.Background(), planner.TripRequest{Origin: "200060"})
	assert.ErrorIs(t, err, planner.ErrPlanningFailed)
}

func TestClient_Departures(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tp/departure_mon", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "stop", q.Get("type_dm"))
		assert.Equal(t, "200060", q.Get("name_dm"))
		assert.Equal(t, "true", q.Get("departureMonitorMacro"))

		writeJSON(w, map[string]any{
			"stopEvents": []map[string]any{
				{
					"departureTimePlanned":   "2024-05-01T08:05:00Z",
					"departureTimeEstimated": "2024-05-01T08:07:00Z",
					"isRealtimeControlled":   true,
					"location": map[string]any{
						"id":   "2000334",
						"name": "Central Station, Platform 16, Sydney",
						"type": "platform",
						"parent": map[string]any{
							"id":               "200060",
							"name":             "Central Station, Sydney",
							"disassembledName": "Central Station",
						},
					},
					"transportation": map[string]any{
						"id":          "nsw:020T1: :H:sj2",
						"number":      "T1",
						"product":     map[string]any{"class": 1},
						"destination": map[string]any{"name": "Hornsby"},
					},
					"properties": map[string]any{"RealtimeTripId": "178-T.1297"},
				},
				{
					"departureTimePlanned": "2024-05-01T08:09:00Z",
					"location":             map[string]any{"id": "2000335", "name": "Central Station, Platform 17, Sydney"},
					"transportation": map[string]any{
						"number":  "T9",
						"product": map[string]any{"class": 1},
					},
				},
			},
		})
	})

	deps, err := client.Departures(context.Background(), planner.DepartureRequest{StopID: "200060", Limit: 1})
	require.NoError(t, err)
	require.Len(t, deps, 1)

	d := deps[0]
	assert.Equal(t, "T1", d.Transportation.Line())
	assert.Equal(t, "Hornsby", d.Transportation.DestinationName)
	assert.Equal(t, "200060", d.Location.ParentID)
	assert.Equal(t, "Central Station", d.Location.DisassembledName)
	assert.Equal(t, "178-T.1297", d.Properties["RealtimeTripId"])
	assert.Equal(t, time.Date(2024, 5, 1, 8, 7, 0, 0, time.UTC), *d.EffectiveTime())
}

func TestClient_Departures_RequiresStop(t *testing.T) {
	client := tfnsw.NewClient(tfnsw.ClientConfig{APIKey: "****", Logger: zerolog.Nop()})
	_, err := client.Departures(context.Background(), planner.DepartureRequest{})
	assert.ErrorIs(t, err, planner.ErrPlanningFailed)
}
