package tracking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetransit/livetransit/internal/geo"
	"github.com/livetransit/livetransit/internal/journey/journeytest"
	"github.com/livetransit/livetransit/internal/tracking"
)

func trainLegs(t *testing.T) []tracking.JourneyLeg {
	t.Helper()
	legs, err := tracking.LegsFromJourney(journeytest.TrainJourney("trip-123", 10))
	require.NoError(t, err)
	return legs
}

func transferLegs(t *testing.T) []tracking.JourneyLeg {
	t.Helper()
	legs, err := tracking.LegsFromJourney(journeytest.TransferJourney("train-1", "bus-1"))
	require.NoError(t, err)
	return legs
}

func at(lat, lon float64, minutes float64) tracking.Sample {
	return tracking.Sample{
		Location:  geo.Point{Lat: lat, Lon: lon},
		Timestamp: journeytest.Base.Add(time.Duration(minutes * float64(time.Minute))),
	}
}

// Coordinates of the fixture stops.
const (
	lon         = 151.2070
	homeLat     = -33.8805
	centralLat  = -33.8832
	townHallLat = -33.8742
	wynyardLat  = -33.8652
	milsonsLat  = -33.8562
	northSydLat = -33.8472
)

func TestDetect_EmptyLegs(t *testing.T) {
	d := tracking.Detect(at(homeLat, lon, 0), nil, 0)
	assert.Equal(t, tracking.PhaseCompleted, d.Phase)
	assert.Equal(t, 1.0, d.Progress)
}

func TestDetect_WalkingToStop(t *testing.T) {
	legs := trainLegs(t)

	d := tracking.Detect(at(homeLat, lon, 0), legs, 0)
	assert.Equal(t, tracking.PhaseWalkingToStop, d.Phase)
	assert.Equal(t, 0, d.LegIndex)
	assert.InDelta(t, 0, d.Progress, 0.01)
	assert.Equal(t, "Home", d.CurrentStopName)
	assert.Equal(t, "Central", d.NextStopName)
	require.NotNil(t, d.NextEventTime)
	assert.Equal(t, journeytest.At(5), *d.NextEventTime, "next event is the train departure")
	assert.Nil(t, d.Transfer)

	require.NotNil(t, d.Navigation)
	assert.InDelta(t, 300, d.Navigation.Distance, 2)
	assert.Equal(t, geo.South, d.Navigation.Direction)
	assert.InDelta(t, 180, d.Navigation.Bearing, 1)
	assert.WithinDuration(t, journeytest.At(0).Add(geo.WalkingDuration(d.Navigation.Distance)), d.Navigation.ETA, time.Second)

	halfway := tracking.Detect(at((homeLat+centralLat)/2, lon, 2), legs, 0)
	assert.Equal(t, tracking.PhaseWalkingToStop, halfway.Phase)
	assert.InDelta(t, 0.5, halfway.LegProgress, 0.05)
	assert.InDelta(t, 0.25, halfway.Progress, 0.03)
}

func TestDetect_WaitingThenOnVehicle(t *testing.T) {
	legs := trainLegs(t)

	d := tracking.Detect(at(centralLat, lon, 4), legs, 0)
	assert.Equal(t, tracking.PhaseWaiting, d.Phase)
	assert.Equal(t, 1, d.LegIndex)
	assert.Equal(t, "Central", d.CurrentStopName)
	assert.Equal(t, "Town Hall", d.NextStopName)
	assert.Equal(t, 4, d.StopsRemaining)
	assert.Equal(t, journeytest.At(5), *d.NextEventTime)
	assert.InDelta(t, 0.5, d.Progress, 1e-9)
	assert.False(t, d.ShouldAlert)
	assert.Nil(t, d.Navigation)

	departed := tracking.Detect(at(centralLat, lon, 6), legs, 1)
	assert.Equal(t, tracking.PhaseOnVehicle, departed.Phase, "past the departure time the traveler is aboard")
}

func TestDetect_OnVehicleAndAlerting(t *testing.T) {
	legs := trainLegs(t)

	mid := tracking.Detect(at(wynyardLat, lon, 10), legs, 1)
	assert.Equal(t, tracking.PhaseOnVehicle, mid.Phase)
	assert.Equal(t, 2, mid.StopsRemaining)
	assert.Equal(t, "Wynyard", mid.CurrentStopName)
	assert.Equal(t, "Milsons Point", mid.NextStopName)
	assert.Equal(t, journeytest.At(15), *mid.NextEventTime)
	assert.InDelta(t, 0.75, mid.Progress, 1e-9)
	assert.False(t, mid.ShouldAlert)

	nearEnd := tracking.Detect(at(milsonsLat, lon, 12.5), legs, 1)
	assert.Equal(t, tracking.PhaseOnVehicle, nearEnd.Phase)
	assert.Equal(t, 1, nearEnd.StopsRemaining)
	assert.True(t, nearEnd.ShouldAlert)
	assert.Contains(t, nearEnd.AlertMessage, "North Sydney")

	arriving := tracking.Detect(at(northSydLat-0.003, lon, 14), legs, 1)
	assert.Equal(t, tracking.PhaseArriving, arriving.Phase)
	assert.Equal(t, 0, arriving.StopsRemaining)
	assert.True(t, arriving.ShouldAlert)
}

func TestDetect_JoinsRideMidRoute(t *testing.T) {
	legs := trainLegs(t)

	mid := tracking.Detect(at(wynyardLat, lon, 10), legs, 0)
	assert.Equal(t, 1, mid.LegIndex, "a first fix at an intermediate stop finds the vehicle leg")
	assert.Equal(t, tracking.PhaseOnVehicle, mid.Phase)
	assert.Equal(t, 2, mid.StopsRemaining)

	nearEnd := tracking.Detect(at(milsonsLat, lon, 12.5), legs, 0)
	assert.Equal(t, 1, nearEnd.LegIndex)
	assert.True(t, nearEnd.ShouldAlert)

	lost := tracking.Detect(at(wynyardLat, lon+0.02, 10), legs, 0)
	assert.Equal(t, 0, lost.LegIndex, "far from every stop the previous leg is kept")
}

func TestDetect_Completed(t *testing.T) {
	legs := trainLegs(t)

	d := tracking.Detect(at(northSydLat+0.0004, lon, 15), legs, 0)
	assert.Equal(t, tracking.PhaseCompleted, d.Phase)
	assert.Equal(t, 1, d.LegIndex)
	assert.Equal(t, 1.0, d.Progress)
	assert.Equal(t, "North Sydney", d.CurrentStopName)
}

func TestDetect_LegIndexNeverMovesBack(t *testing.T) {
	legs := trainLegs(t)

	d := tracking.Detect(at(homeLat, lon, 7), legs, 1)
	assert.Equal(t, 1, d.LegIndex)
	assert.NotEqual(t, tracking.PhaseWalkingToStop, d.Phase)

	d = tracking.Detect(at(homeLat, lon, 7), legs, 9)
	assert.Equal(t, 1, d.LegIndex, "an out-of-range index is clamped")
}

func TestDetect_Transferring(t *testing.T) {
	legs := transferLegs(t)

	d := tracking.Detect(at(wynyardLat, lon, 9), legs, 1)
	assert.Equal(t, tracking.PhaseTransferring, d.Phase)
	assert.Equal(t, 2, d.LegIndex)
	assert.Equal(t, "Wynyard Stand B", d.NextStopName)
	assert.Equal(t, journeytest.At(14), *d.NextEventTime)

	require.NotNil(t, d.Transfer)
	assert.Equal(t, "343", d.Transfer.Line)
	assert.Equal(t, "bus", string(d.Transfer.Mode))
	assert.Equal(t, "Wynyard Stand B", d.Transfer.StopName)
	assert.Equal(t, 5, d.Transfer.ConnectionMinutes)

	require.NotNil(t, d.Navigation)
	assert.InDelta(t, 100, d.Navigation.Distance, 2)
	assert.Equal(t, geo.North, d.Navigation.Direction)
}

func TestDetect_TransferConnectionNeverNegative(t *testing.T) {
	legs := transferLegs(t)
	late := journeytest.At(15)
	legs[1].Destination.ArrivalTime = &late

	d := tracking.Detect(at(wynyardLat, lon, 15), legs, 1)
	require.NotNil(t, d.Transfer)
	assert.Equal(t, 0, d.Transfer.ConnectionMinutes)
}

func TestDetect_AlertNamesTransferLine(t *testing.T) {
	legs := transferLegs(t)

	d := tracking.Detect(at(townHallLat, lon, 7), legs, 1)
	assert.Equal(t, tracking.PhaseOnVehicle, d.Phase)
	assert.Equal(t, 1, d.StopsRemaining)
	assert.True(t, d.ShouldAlert)
	assert.Equal(t, "Get off at Wynyard to change to 343", d.AlertMessage)
}

func TestDetect_AlertWithoutStopSequence(t *testing.T) {
	legs := trainLegs(t)
	legs[1].Stops = nil

	far := tracking.Detect(at(milsonsLat, lon, 12), legs, 1)
	assert.False(t, far.ShouldAlert)
	assert.Equal(t, "Central", far.CurrentStopName)

	near := tracking.Detect(at(northSydLat-0.0036, lon, 14), legs, 1)
	assert.Equal(t, tracking.PhaseArriving, near.Phase)
	assert.True(t, near.ShouldAlert)
	assert.Contains(t, near.AlertMessage, "destination")
}

func TestDetect_RealtimeFlags(t *testing.T) {
	legs := transferLegs(t)
	legs[1].DelayMinutes = 4
	legs[3].Cancelled = true

	d := tracking.Detect(at(homeLat, lon, 0), legs, 0)
	assert.Equal(t, 4, d.DelayMinutes, "walking phases report the next service's delay")
	assert.True(t, d.Cancelled)

	d = tracking.Detect(at(wynyardLat, lon, 9), legs, 1)
	assert.Equal(t, 0, d.DelayMinutes)
	assert.True(t, d.Cancelled)
}

func TestDetect_ProgressMonotonicAlongLeg(t *testing.T) {
	legs := trainLegs(t)

	prev := -1.0
	for k := 1; k <= 20; k++ {
		lat := centralLat + (northSydLat-centralLat)*float64(k)/20
		d := tracking.Detect(at(lat, lon, 5+float64(k)*0.5), legs, 1)
		assert.GreaterOrEqual(t, d.Progress, prev, "step %d", k)
		assert.GreaterOrEqual(t, d.Progress, 0.0)
		assert.LessOrEqual(t, d.Progress, 1.0)
		prev = d.Progress
	}

	prev = -1.0
	for k := 0; k <= 10; k++ {
		lat := homeLat + (centralLat-homeLat)*float64(k)/10
		d := tracking.Detect(at(lat, lon, float64(k)*0.4), legs, 0)
		assert.GreaterOrEqual(t, d.Progress, prev, "walk step %d", k)
		prev = d.Progress
	}
}
