package realtime

import (
	"strings"

	"github.com/livetransit/livetransit/internal/gtfsrt"
	"github.com/livetransit/livetransit/internal/journey"
)

type journeyRefs struct {
	transportIDs []string
	stopIDs      map[string]struct{}
	tripIDs      map[string]struct{}
}

func collectRefs(j journey.Journey) journeyRefs {
	refs := journeyRefs{
		stopIDs: make(map[string]struct{}),
		tripIDs: make(map[string]struct{}),
	}

	addStop := func(l journey.Location) {
		if l.ID != "" {
			refs.stopIDs[l.ID] = struct{}{}
		}
		if l.ParentID != "" {
			refs.stopIDs[l.ParentID] = struct{}{}
		}
	}

	for i := range j.Legs {
		leg := &j.Legs[i]
		addStop(leg.Origin)
		addStop(leg.Destination)
		for _, s := range leg.StopSequence {
			addStop(s)
		}
		if leg.IsWalking() {
			continue
		}
		if leg.Transportation.ID != "" {
			refs.transportIDs = append(refs.transportIDs, leg.Transportation.ID)
		}
		if id := ExtractTripID(leg.Transportation, leg.Properties); id != "" {
			refs.tripIDs[id] = struct{}{}
		}
	}
	return refs
}

func (r journeyRefs) matches(e gtfsrt.InformedEntity) bool {
	if e.RouteID != "" {
		for _, id := range r.transportIDs {
			if strings.Contains(id, e.RouteID) {
				return true
			}
		}
	}
	if e.StopID != "" {
		if _, ok := r.stopIDs[e.StopID]; ok {
			return true
		}
	}
	if e.TripID != "" {
		if _, ok := r.tripIDs[e.TripID]; ok {
			return true
		}
	}
	return false
}

// FilterAlertsForJourney returns the alerts whose informed entities reference
// one of the journey's routes, stops or trips. A route matches when its id is a
// substring of a leg's transportation id. Each alert id appears once.
func FilterAlertsForJourney(j journey.Journey, alerts []gtfsrt.Alert) []gtfsrt.Alert {
	refs := collectRefs(j)

	var out []gtfsrt.Alert
	seen := make(map[string]struct{})
	for i := range alerts {
		a := &alerts[i]
		if _, dup := seen[a.ID]; dup && a.ID != "" {
			continue
		}
		for _, e := range a.InformedEntities {
			if refs.matches(e) {
				seen[a.ID] = struct{}{}
				out = append(out, *a)
				break
			}
		}
	}
	return out
}

// FilterAlerts returns the alerts informing the given route or stop. Empty
// filters match every alert. Each alert id appears once.
func FilterAlerts(alerts []gtfsrt.Alert, routeID, stopID string) []gtfsrt.Alert {
	var out []gtfsrt.Alert
	seen := make(map[string]struct{})
	for i := range alerts {
		a := &alerts[i]
		if _, dup := seen[a.ID]; dup && a.ID != "" {
			continue
		}
		if (routeID == "" && stopID == "") || informs(a, routeID, stopID) {
			seen[a.ID] = struct{}{}
			out = append(out, *a)
		}
	}
	return out
}

func informs(a *gtfsrt.Alert, routeID, stopID string) bool {
	for _, e := range a.InformedEntities {
		if routeID != "" && e.RouteID != "" && (strings.Contains(routeID, e.RouteID) || strings.Contains(e.RouteID, routeID)) {
			return true
		}
		if stopID != "" && e.StopID == stopID {
			return true
		}
	}
	return false
}
