package realtime

import (
	"strconv"
	"strings"

	"github.com/livetransit/livetransit/internal/gtfsrt"
	"github.com/livetransit/livetransit/internal/journey"
)

// Property keys read from planner properties bags.
const (
	propTripID         = "tripId"
	propRealtimeTripID = "RealtimeTripId"
	propRouteID        = "routeId"
	propDirectionID    = "directionId"
)

// ExtractTripID returns the trip id of a service: the third colon-separated
// segment of the transportation id when present, else a tripId property of
// the transportation or of the leg.
func ExtractTripID(t *journey.Transportation, props map[string]string) string {
	if t != nil {
		parts := strings.Split(t.ID, ":")
		if len(parts) >= 3 {
			if id := strings.TrimSpace(parts[2]); id != "" {
				return id
			}
		}
		if id := t.Properties[propTripID]; id != "" {
			return id
		}
	}
	return props[propTripID]
}

// RealtimeTripID returns the enrichment trip id supplied by the planner, if any.
func RealtimeTripID(t *journey.Transportation, props map[string]string) string {
	if t != nil {
		if id := t.Properties[propRealtimeTripID]; id != "" {
			return id
		}
	}
	return props[propRealtimeTripID]
}

// VehicleQuery describes the service a vehicle position is matched against.
type VehicleQuery struct {
	RealtimeTripID string
	TripID         string
	RouteID        string
	DirectionID    *int32
}

// VehicleMatcher is one named strategy for pairing a service with a vehicle position.
type VehicleMatcher struct {
	Name  string
	Match func(q VehicleQuery, vp *gtfsrt.VehiclePosition) bool
}

// DefaultVehicleMatchers is the ordered matcher chain. Earlier matchers are stronger.
var DefaultVehicleMatchers = []VehicleMatcher{
	{Name: "realtime_trip_id", Match: MatchRealtimeTripID},
	{Name: "trip_id", Match: MatchTripID},
	{Name: "route_direction", Match: MatchRouteDirection},
}

// MatchRealtimeTripID matches on the enrichment trip id.
func MatchRealtimeTripID(q VehicleQuery, vp *gtfsrt.VehiclePosition) bool {
	return q.RealtimeTripID != "" && vp.Trip != nil && vp.Trip.TripID == q.RealtimeTripID
}

// MatchTripID matches on exact trip id.
func MatchTripID(q VehicleQuery, vp *gtfsrt.VehiclePosition) bool {
	return q.TripID != "" && vp.Trip != nil && vp.Trip.TripID == q.TripID
}

// MatchRouteDirection matches when either route id contains the other and the
// direction ids agree. Route ids that prefix each other ("T1", "T10") also match.
func MatchRouteDirection(q VehicleQuery, vp *gtfsrt.VehiclePosition) bool {
	if q.RouteID == "" || vp.Trip == nil || vp.Trip.RouteID == "" {
		return false
	}
	route := vp.Trip.RouteID
	if !strings.Contains(route, q.RouteID) && !strings.Contains(q.RouteID, route) {
		return false
	}
	return sameDirection(q.DirectionID, vp.Trip.DirectionID)
}

func sameDirection(a, b *int32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FindVehicle tries each matcher over all positions in order and returns the
// first hit together with the matcher name.
func FindVehicle(q VehicleQuery, positions []gtfsrt.VehiclePosition, matchers []VehicleMatcher) (*gtfsrt.VehiclePosition, string) {
	for _, m := range matchers {
		for i := range positions {
			if m.Match(q, &positions[i]) {
				return &positions[i], m.Name
			}
		}
	}
	return nil, ""
}

func parseDirection(s string) *int32 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil
	}
	d := int32(v)
	return &d
}

// vehicleQuery builds the match query of a service, preferring route and
// direction from its trip update.
func vehicleQuery(t *journey.Transportation, props map[string]string, tu *gtfsrt.TripUpdate) VehicleQuery {
	q := VehicleQuery{
		RealtimeTripID: RealtimeTripID(t, props),
		TripID:         ExtractTripID(t, props),
	}

	if tu != nil {
		q.RouteID = tu.Trip.RouteID
		q.DirectionID = tu.Trip.DirectionID
	}
	if t != nil {
		if q.RouteID == "" {
			q.RouteID = t.Properties[propRouteID]
		}
		if q.RouteID == "" {
			q.RouteID = t.Line()
		}
		if q.DirectionID == nil {
			q.DirectionID = parseDirection(t.Properties[propDirectionID])
		}
	}
	return q
}

// lookupTripUpdate finds the trip update of a service by trip id, then by enrichment id.
func lookupTripUpdate(snap *Snapshot, t *journey.Transportation, props map[string]string) (*gtfsrt.TripUpdate, string) {
	tripID := ExtractTripID(t, props)
	if tu, ok := snap.TripUpdate(tripID); ok {
		return tu, tripID
	}
	if rt := RealtimeTripID(t, props); rt != "" {
		if tu, ok := snap.TripUpdate(rt); ok {
			return tu, rt
		}
	}
	return nil, tripID
}
