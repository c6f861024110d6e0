package realtime_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetransit/livetransit/internal/feedstore"
	"github.com/livetransit/livetransit/internal/gtfsrt"
	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/journey/journeytest"
	"github.com/livetransit/livetransit/internal/realtime"
)

func i32(v int32) *int32 { return &v }

func snapshotWith(updates []gtfsrt.TripUpdate, positions []gtfsrt.VehiclePosition, alerts []gtfsrt.Alert) *realtime.Snapshot {
	now := journeytest.Base
	tu := &feedstore.Batch{Feed: "sydneytrains", Kind: gtfsrt.KindTripUpdates, FetchedAt: now, TripUpdates: updates}
	vp := &feedstore.Batch{Feed: "sydneytrains", Kind: gtfsrt.KindVehiclePositions, FetchedAt: now, VehiclePositions: positions}
	al := &feedstore.Batch{Feed: "sydneytrains", Kind: gtfsrt.KindAlerts, FetchedAt: now, Alerts: alerts}
	return realtime.NewSnapshot(now, 0, tu, vp, al)
}

func TestMergeJourney_DelayedTrain(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	snap := snapshotWith([]gtfsrt.TripUpdate{
		{Trip: gtfsrt.TripDescriptor{TripID: "trip-123", RouteID: "T1"}, Delay: i32(180)},
	}, nil, nil)

	merged := realtime.MergeJourney(j, snap)

	assert.Equal(t, 3, merged.RealtimeDelayMinutes)
	assert.False(t, merged.HasCancellations)

	train := merged.Legs[1]
	require.NotNil(t, train.Realtime)
	assert.Equal(t, "trip-123", train.Realtime.TripID)
	assert.Equal(t, 180, train.Realtime.DelaySeconds)
	require.NotNil(t, train.Destination.Realtime)
	assert.Equal(t, journey.StatusDelayed, train.Destination.Realtime.Status)

	// Planned times are untouched; effective arrival moves.
	assert.Equal(t, journeytest.At(15), *train.Destination.ArrivalTimePlanned)
	assert.Equal(t, journeytest.At(18), *train.Destination.EffectiveArrival())
	assert.Equal(t, 18*time.Minute, merged.Duration())

	// The input journey is not modified.
	assert.Nil(t, j.Legs[1].Realtime)
	assert.Nil(t, j.Legs[1].Destination.Realtime)
	assert.Nil(t, merged.Legs[0].Realtime, "walking legs carry no service realtime")
}

func TestMergeJourney_CancellationDominates(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	snap := snapshotWith([]gtfsrt.TripUpdate{
		{
			Trip:  gtfsrt.TripDescriptor{TripID: "trip-123", ScheduleRelationship: gtfsrt.ScheduleCanceled},
			Delay: i32(600),
			StopTimeUpdates: []gtfsrt.StopTimeUpdate{
				{Departure: &gtfsrt.StopTimeEvent{Delay: i32(900)}},
			},
		},
	}, []gtfsrt.VehiclePosition{vehicle("v1", "trip-123", "T1", nil)}, nil)

	merged := realtime.MergeJourney(j, snap)

	train := merged.Legs[1]
	require.NotNil(t, train.Realtime)
	assert.True(t, train.Realtime.Cancelled)
	assert.Equal(t, 0, train.Realtime.DelaySeconds)
	assert.Nil(t, train.Realtime.Vehicle)
	assert.Equal(t, 0, merged.RealtimeDelayMinutes)
	assert.True(t, merged.HasCancellations)
	assert.Equal(t, journey.StatusCancelled, train.Destination.Realtime.Status)
	assert.Len(t, merged.Legs, 2, "cancelled legs are kept")
}

func TestMergeJourney_DelayFallsBackToStopTimeUpdates(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	snap := snapshotWith([]gtfsrt.TripUpdate{
		{
			Trip: gtfsrt.TripDescriptor{TripID: "trip-123"},
			StopTimeUpdates: []gtfsrt.StopTimeUpdate{
				{Arrival: &gtfsrt.StopTimeEvent{Delay: i32(89)}},
			},
		},
	}, nil, nil)

	merged := realtime.MergeJourney(j, snap)
	assert.Equal(t, 1, merged.RealtimeDelayMinutes)
	assert.Equal(t, journey.StatusDelayed, merged.Legs[1].Destination.Realtime.Status)
}

func TestMergeJourney_MatchMissLeavesLegUnmodified(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	snap := snapshotWith([]gtfsrt.TripUpdate{{Trip: gtfsrt.TripDescriptor{TripID: "other"}, Delay: i32(300)}}, nil, nil)

	merged := realtime.MergeJourney(j, snap)
	assert.Equal(t, j.Legs, merged.Legs)
	assert.Equal(t, 0, merged.RealtimeDelayMinutes)
}

func TestMergeJourney_AttachesVehicle(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	j.Legs[1].Transportation.Properties = map[string]string{"RealtimeTripId": "RT-77"}

	snap := snapshotWith(nil, []gtfsrt.VehiclePosition{
		vehicle("by-trip", "trip-123", "", nil),
		vehicle("by-enrichment", "RT-77", "", nil),
	}, nil)

	merged := realtime.MergeJourney(j, snap)
	rt := merged.Legs[1].Realtime
	require.NotNil(t, rt)
	require.NotNil(t, rt.Vehicle)
	assert.Equal(t, "by-enrichment", rt.Vehicle.ID)
	assert.Equal(t, "realtime_trip_id", rt.VehicleMatch)
	assert.Nil(t, merged.Legs[1].Destination.Realtime, "a vehicle alone carries no delay")
}

func TestMergeJourney_RouteDirectionFallbackUsesTripUpdateDirection(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	snap := snapshotWith(
		[]gtfsrt.TripUpdate{{Trip: gtfsrt.TripDescriptor{TripID: "trip-123", RouteID: "T1", DirectionID: i32(1)}}},
		[]gtfsrt.VehiclePosition{
			vehicle("wrong-direction", "", "T1", i32(0)),
			vehicle("right-direction", "", "T1", i32(1)),
		}, nil)

	merged := realtime.MergeJourney(j, snap)
	require.NotNil(t, merged.Legs[1].Realtime.Vehicle)
	assert.Equal(t, "right-direction", merged.Legs[1].Realtime.Vehicle.ID)
	assert.Equal(t, "route_direction", merged.Legs[1].Realtime.VehicleMatch)
}

func TestMergeJourney_SumsLegDelaysAndCarriesIntoWalks(t *testing.T) {
	j := journeytest.TransferJourney("train-1", "bus-1")
	snap := snapshotWith([]gtfsrt.TripUpdate{
		{Trip: gtfsrt.TripDescriptor{TripID: "train-1"}, Delay: i32(120)},
		{Trip: gtfsrt.TripDescriptor{TripID: "bus-1"}, Delay: i32(150)},
	}, nil, nil)

	merged := realtime.MergeJourney(j, snap)
	assert.Equal(t, 2+3, merged.RealtimeDelayMinutes)

	transferWalk := merged.Legs[2]
	require.NotNil(t, transferWalk.Destination.Realtime)
	assert.Equal(t, 120, transferWalk.Destination.Realtime.DelaySeconds)
}

func TestMergeJourney_FiltersActiveAlerts(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	now := journeytest.Base
	snap := snapshotWith(nil, nil, []gtfsrt.Alert{
		{ID: "route", InformedEntities: []gtfsrt.InformedEntity{{RouteID: "T1"}}},
		{ID: "expired", InformedEntities: []gtfsrt.InformedEntity{{RouteID: "T1"}},
			ActivePeriods: []gtfsrt.TimeRange{{Start: now.Add(-2 * time.Hour).Unix(), End: now.Add(-time.Hour).Unix()}}},
		{ID: "elsewhere", InformedEntities: []gtfsrt.InformedEntity{{RouteID: "F1"}}},
	})

	merged := realtime.MergeJourney(j, snap)
	require.Len(t, merged.Alerts, 1)
	assert.Equal(t, "route", merged.Alerts[0].ID)
}

func TestMergeJourney_NilSnapshot(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	merged := realtime.MergeJourney(j, nil)
	assert.Equal(t, j.Legs, merged.Legs)
}

func TestMergeJourney_RemergeDropsEarlierRealtime(t *testing.T) {
	planned := journeytest.TransferJourney("train-1", "bus-1")
	empty := snapshotWith(nil, nil, nil)

	cases := map[string]*realtime.Snapshot{
		"cancelled": snapshotWith([]gtfsrt.TripUpdate{
			{Trip: gtfsrt.TripDescriptor{TripID: "train-1", ScheduleRelationship: gtfsrt.ScheduleCanceled}},
		}, nil, nil),
		"delayed": snapshotWith([]gtfsrt.TripUpdate{
			{Trip: gtfsrt.TripDescriptor{TripID: "train-1"}, Delay: i32(600)},
			{Trip: gtfsrt.TripDescriptor{TripID: "bus-1"}, Delay: i32(600)},
		}, nil, nil),
	}

	for name, first := range cases {
		t.Run(name, func(t *testing.T) {
			once := realtime.MergeJourney(planned, first)
			require.NotNil(t, once.Legs[1].Realtime)

			again := realtime.MergeJourney(once, empty)
			assert.Equal(t, realtime.MergeJourney(planned, empty), again)
			assert.Equal(t, planned.Legs, again.Legs)
			assert.False(t, again.HasCancellations)
			assert.Zero(t, again.RealtimeDelayMinutes)

			assert.Equal(t, planned.Legs, realtime.MergeJourney(once, nil).Legs)
		})
	}
}

func departure(id string, planned time.Time, estimated *time.Time) journey.Departure {
	return journey.Departure{
		Location:               journey.Location{ID: "2000338", Name: "Central Platform 18"},
		DepartureTimePlanned:   &planned,
		DepartureTimeEstimated: estimated,
		Transportation: journey.Transportation{
			ID:               "nsw:T1:" + id + ":H",
			DisassembledName: "T1",
			Product:          journey.Product{Class: journey.ClassTrain},
		},
	}
}

func TestMergeDepartures_SortsAndFlags(t *testing.T) {
	est := journeytest.At(9)
	deps := []journey.Departure{
		departure("a", journeytest.At(2), nil),
		departure("b", journeytest.At(5), nil),
		departure("c", journeytest.At(7), &est),
		departure("d", journeytest.At(1), nil),
	}
	snap := snapshotWith([]gtfsrt.TripUpdate{
		{Trip: gtfsrt.TripDescriptor{TripID: "d", ScheduleRelationship: gtfsrt.ScheduleCanceled}},
		{Trip: gtfsrt.TripDescriptor{TripID: "b"}, Delay: i32(240)},
	}, nil, nil)

	merged := realtime.MergeDepartures(deps, snap)
	require.Len(t, merged, 4)

	var order []string
	for _, d := range merged {
		order = append(order, realtime.ExtractTripID(&d.Transportation, nil))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.True(t, merged[3].IsCancelled())
	assert.Equal(t, 4, merged[1].Realtime.DelayMinutes)
	assert.Equal(t, journey.StatusDelayed, merged[1].Location.Realtime.Status)
}

func TestSortDepartures_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		n := rng.Intn(12)
		deps := make([]journey.Departure, n)
		for i := range deps {
			planned := journeytest.At(rng.Intn(60))
			var est *time.Time
			if rng.Intn(2) == 0 {
				e := planned.Add(time.Duration(rng.Intn(10)) * time.Minute)
				est = &e
			}
			deps[i] = departure("t", planned, est)
			if rng.Intn(4) == 0 {
				deps[i].Realtime = &journey.LegRealtime{Cancelled: true}
			}
		}

		sorted := realtime.SortDepartures(deps)
		require.Len(t, sorted, n)

		seenCancelled := false
		for i := range sorted {
			if sorted[i].IsCancelled() {
				seenCancelled = true
				continue
			}
			assert.False(t, seenCancelled, "non-cancelled departure after a cancelled one")
			if i > 0 && !sorted[i-1].IsCancelled() {
				assert.False(t, sorted[i].EffectiveTime().Before(*sorted[i-1].EffectiveTime()))
			}
		}
	}
}
