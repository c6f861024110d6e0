// Package geo provides great-circle helpers for locating a traveler relative to a journey.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const earthRadiusMeters = 6371000

// WalkingSpeed is the assumed walking speed in meters per second.
const WalkingSpeed = 1.4

// ErrInvalidCoordinate is returned when a coordinate string cannot be parsed.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the point as "lat,lon".
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lon, 'f', 6, 64)
}

// Valid reports whether the point is within WGS84 bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// ParsePoint parses a "lat,lng" string.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	p := Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: %q out of range", ErrInvalidCoordinate, s)
	}
	return p, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the haversine distance between two points in meters.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial great-circle bearing from a to b in degrees, in [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLon := radians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Direction is one of the eight compass points.
type Direction string

const (
	North     Direction = "N"
	NorthEast Direction = "NE"
	East      Direction = "E"
	SouthEast Direction = "SE"
	South     Direction = "S"
	SouthWest Direction = "SW"
	West      Direction = "W"
	NorthWest Direction = "NW"
)

var compassPoints = []Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

var directionLabels = map[Direction]string{
	North:     "north",
	NorthEast: "north-east",
	East:      "east",
	SouthEast: "south-east",
	South:     "south",
	SouthWest: "south-west",
	West:      "west",
	NorthWest: "north-west",
}

// Label returns the lowercase human name, e.g. "north-east".
func (d Direction) Label() string {
	return directionLabels[d]
}

// Compass converts a bearing in degrees to the nearest compass point.
func Compass(bearing float64) Direction {
	b := math.Mod(math.Mod(bearing, 360)+360, 360)
	idx := int(math.Round(b/45)) % len(compassPoints)
	return compassPoints[idx]
}

// WalkingDuration estimates the time to walk the given distance.
func WalkingDuration(meters float64) time.Duration {
	if meters <= 0 {
		return 0
	}
	return time.Duration(math.Round(meters/WalkingSpeed*1000)) * time.Millisecond
}

// WalkingMinutes estimates the whole minutes needed to walk the given distance, rounded up.
func WalkingMinutes(meters float64) int {
	if meters <= 0 {
		return 0
	}
	return int(math.Ceil(meters / WalkingSpeed / 60))
}

// NearestIndex returns the index of the point closest to p, or -1 for an empty slice.
func NearestIndex(p Point, points []Point) int {
	best := -1
	bestDist := math.MaxFloat64
	for i, q := range points {
		if d := Distance(p, q); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
