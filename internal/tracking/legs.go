package tracking

import (
	"github.com/livetransit/livetransit/internal/geo"
	"github.com/livetransit/livetransit/internal/journey"
	"github.com/livetransit/livetransit/internal/realtime"
)

// LegsFromJourney reshapes a merged journey into tracking legs. Times are the
// effective (realtime adjusted) times. A location without coordinates borrows the
// nearest end of the leg's stop sequence or path. Each leg counts the journey
// alerts that inform its route, stops or trip.
func LegsFromJourney(j journey.Journey) ([]JourneyLeg, error) {
	if len(j.Legs) == 0 {
		return nil, ErrEmptyJourney
	}

	legs := make([]JourneyLeg, 0, len(j.Legs))
	for i := range j.Legs {
		leg := &j.Legs[i]

		tl := JourneyLeg{
			Origin:      legEnd(leg.Origin, firstCoord(leg)),
			Destination: legEnd(leg.Destination, lastCoord(leg)),
			Walking:     leg.IsWalking(),
			Cancelled:   leg.IsCancelled(),
		}
		if leg.Realtime != nil && !leg.Realtime.Cancelled {
			tl.DelayMinutes = leg.Realtime.DelayMinutes
		}
		if len(j.Alerts) > 0 && !tl.Walking {
			tl.Alerts = len(realtime.FilterAlertsForJourney(journey.Journey{Legs: j.Legs[i : i+1]}, j.Alerts))
		}

		if tl.Walking {
			tl.Distance = leg.WalkingMeters()
		} else {
			t := leg.Transportation
			tl.Transport = &TransportSummary{
				Line:        t.Line(),
				Name:        t.Name,
				Mode:        t.Mode(),
				Destination: t.DestinationName,
			}
			for _, s := range leg.StopSequence {
				if s.Coord == nil {
					continue
				}
				tl.Stops = append(tl.Stops, StopPoint{ID: s.ID, Name: stopName(s), Coord: *s.Coord})
			}
			if len(leg.Coords) > 1 {
				tl.Distance = geo.PathLength(leg.Coords)
			} else {
				tl.Distance = float64(leg.Distance)
			}
		}

		legs = append(legs, tl)
	}
	return legs, nil
}

func legEnd(loc journey.Location, fallback *geo.Point) LegEnd {
	end := LegEnd{
		Name:          stopName(loc),
		ArrivalTime:   loc.EffectiveArrival(),
		DepartureTime: loc.EffectiveDeparture(),
	}
	switch {
	case loc.Coord != nil:
		end.Coord = *loc.Coord
	case fallback != nil:
		end.Coord = *fallback
	}
	return end
}

func stopName(loc journey.Location) string {
	if loc.DisassembledName != "" {
		return loc.DisassembledName
	}
	return loc.Name
}

func firstCoord(leg *journey.Leg) *geo.Point {
	for _, s := range leg.StopSequence {
		if s.Coord != nil {
			return s.Coord
		}
	}
	if len(leg.Coords) > 0 {
		return &leg.Coords[0]
	}
	return nil
}

func lastCoord(leg *journey.Leg) *geo.Point {
	for i := len(leg.StopSequence) - 1; i >= 0; i-- {
		if leg.StopSequence[i].Coord != nil {
			return leg.StopSequence[i].Coord
		}
	}
	if n := len(leg.Coords); n > 0 {
		return &leg.Coords[n-1]
	}
	return nil
}
