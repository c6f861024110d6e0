// Package journeytest builds journey fixtures for tests.
package journeytest

import (
	"fmt"
	"time"

	"github.com/livetransit/livetransit/internal/geo"
	"github.com/livetransit/livetransit/internal/journey"
)

// Base is the reference time of fixtures: 08:00 UTC on 1 May 2024.
var Base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// At returns Base plus the given minutes.
func At(minutes int) time.Time {
	return Base.Add(time.Duration(minutes) * time.Minute)
}

func ptr(t time.Time) *time.Time {
	return &t
}

// Stop builds a stop location.
func Stop(id, name string, lat, lon float64) journey.Location {
	return journey.Location{
		ID:    id,
		Name:  name,
		Type:  "stop",
		Coord: &geo.Point{Lat: lat, Lon: lon},
	}
}

// Home is the walking origin of the scenario journey, 300 m south of Central.
var Home = journey.Location{Name: "Home", Type: "coord", Coord: &geo.Point{Lat: -33.8805, Lon: 151.2070}}

// TrainStops returns five stops roughly 1 km apart heading north from Central.
func TrainStops() []journey.Location {
	names := []string{"Central", "Town Hall", "Wynyard", "Milsons Point", "North Sydney"}
	stops := make([]journey.Location, len(names))
	for i, name := range names {
		stops[i] = Stop(fmt.Sprintf("20003%02d", i), name, -33.8832+float64(i)*0.009, 151.2070)
	}
	return stops
}

// WalkLeg builds a walking leg.
func WalkLeg(from, to journey.Location, dep, arr time.Time, meters int) journey.Leg {
	from.DepartureTimePlanned = ptr(dep)
	to.ArrivalTimePlanned = ptr(arr)

	leg := journey.Leg{
		Origin:      from,
		Destination: to,
		Duration:    int(arr.Sub(dep).Seconds()),
		Distance:    meters,
	}
	if from.Coord != nil && to.Coord != nil {
		leg.Coords = []geo.Point{*from.Coord, *to.Coord}
	}
	return leg
}

// TransitLeg builds a transit leg over stops with the given line and trip id.
// Stop times are spread evenly between dep and arr.
func TransitLeg(class int, line, tripID string, stops []journey.Location, dep, arr time.Time) journey.Leg {
	seq := make([]journey.Location, len(stops))
	step := time.Duration(0)
	if len(stops) > 1 {
		step = arr.Sub(dep) / time.Duration(len(stops)-1)
	}
	var coords []geo.Point
	for i, s := range stops {
		at := dep.Add(time.Duration(i) * step)
		s.ArrivalTimePlanned = ptr(at)
		s.DepartureTimePlanned = ptr(at)
		seq[i] = s
		if s.Coord != nil {
			coords = append(coords, *s.Coord)
		}
	}

	origin := seq[0]
	origin.ArrivalTimePlanned = nil
	destination := seq[len(seq)-1]
	destination.DepartureTimePlanned = nil

	return journey.Leg{
		Origin:      origin,
		Destination: destination,
		Transportation: &journey.Transportation{
			ID:               "nsw:" + line + ":" + tripID + ":H",
			Name:             line + " line",
			DisassembledName: line,
			Number:           line,
			Product:          journey.Product{Class: class, Name: string(journey.ModeFromClass(class))},
			DestinationName:  destination.Name,
		},
		StopSequence:         seq,
		Coords:               coords,
		Duration:             int(arr.Sub(dep).Seconds()),
		Distance:             int(geo.PathLength(coords)),
		IsRealtimeControlled: true,
	}
}

// TrainJourney builds a 300 m walk to Central followed by a T1 train of the given
// length in minutes over five stops, departing at 08:05.
func TrainJourney(tripID string, trainMinutes int) journey.Journey {
	stops := TrainStops()
	return journey.Journey{
		Legs: []journey.Leg{
			WalkLeg(Home, stops[0], At(0), At(4), 300),
			TransitLeg(journey.ClassTrain, "T1", tripID, stops, At(5), At(5+trainMinutes)),
		},
	}
}

// TransferJourney builds walk, train to Wynyard, walk, then a bus to North Sydney.
func TransferJourney(trainTrip, busTrip string) journey.Journey {
	stops := TrainStops()
	busStop := Stop("2060100", "Wynyard Stand B", stops[2].Coord.Lat+0.0009, 151.2070)
	finalStop := stops[4]
	finalStop.ID = "2060200"

	return journey.Journey{
		Legs: []journey.Leg{
			WalkLeg(Home, stops[0], At(0), At(4), 300),
			TransitLeg(journey.ClassTrain, "T1", trainTrip, stops[:3], At(5), At(9)),
			WalkLeg(stops[2], busStop, At(9), At(11), 100),
			TransitLeg(journey.ClassBus, "343", busTrip, []journey.Location{busStop, finalStop}, At(14), At(22)),
		},
		Interchanges: 1,
	}
}
