package realtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/livetransit/livetransit/internal/gtfsrt"
	"github.com/livetransit/livetransit/internal/journey/journeytest"
	"github.com/livetransit/livetransit/internal/realtime"
)

func alertIDs(alerts []gtfsrt.Alert) []string {
	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestFilterAlertsForJourney(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	wynyard := journeytest.TrainStops()[2].ID

	alerts := []gtfsrt.Alert{
		{ID: "route", InformedEntities: []gtfsrt.InformedEntity{{RouteID: "T1"}}},
		{ID: "stop", InformedEntities: []gtfsrt.InformedEntity{{StopID: wynyard}}},
		{ID: "trip", InformedEntities: []gtfsrt.InformedEntity{{TripID: "trip-123"}}},
		{ID: "route", InformedEntities: []gtfsrt.InformedEntity{{RouteID: "T1"}, {StopID: wynyard}}},
		{ID: "unrelated-route", InformedEntities: []gtfsrt.InformedEntity{{RouteID: "M1"}}},
		{ID: "unrelated-stop", InformedEntities: []gtfsrt.InformedEntity{{StopID: "999999"}}},
		{ID: "agency-only", InformedEntities: []gtfsrt.InformedEntity{{AgencyID: "SydneyTrains"}}},
	}

	got := realtime.FilterAlertsForJourney(j, alerts)
	assert.ElementsMatch(t, []string{"route", "stop", "trip"}, alertIDs(got))
}

func TestFilterAlertsForJourney_ParentStop(t *testing.T) {
	j := journeytest.TrainJourney("trip-123", 10)
	j.Legs[1].Destination.ParentID = "206010"

	got := realtime.FilterAlertsForJourney(j, []gtfsrt.Alert{
		{ID: "parent", InformedEntities: []gtfsrt.InformedEntity{{StopID: "206010"}}},
	})
	assert.Equal(t, []string{"parent"}, alertIDs(got))
}

func TestFilterAlertsForJourney_WalkingOnly(t *testing.T) {
	stops := journeytest.TrainStops()
	j := journeytest.TrainJourney("x", 10)
	j.Legs = j.Legs[:1]

	got := realtime.FilterAlertsForJourney(j, []gtfsrt.Alert{
		{ID: "route", InformedEntities: []gtfsrt.InformedEntity{{RouteID: "T1"}}},
		{ID: "central", InformedEntities: []gtfsrt.InformedEntity{{StopID: stops[0].ID}}},
	})
	assert.Equal(t, []string{"central"}, alertIDs(got))
}

func TestFilterAlerts(t *testing.T) {
	alerts := []gtfsrt.Alert{
		{ID: "t1", InformedEntities: []gtfsrt.InformedEntity{{RouteID: "T1"}}},
		{ID: "central", InformedEntities: []gtfsrt.InformedEntity{{StopID: "200060"}}},
		{ID: "t1", InformedEntities: []gtfsrt.InformedEntity{{RouteID: "T1"}}},
	}

	assert.Equal(t, []string{"t1", "central"}, alertIDs(realtime.FilterAlerts(alerts, "", "")))
	assert.Equal(t, []string{"t1"}, alertIDs(realtime.FilterAlerts(alerts, "T1", "")))
	assert.Equal(t, []string{"central"}, alertIDs(realtime.FilterAlerts(alerts, "", "200060")))
	assert.Empty(t, realtime.FilterAlerts(alerts, "F3", "1"))
}
