// Package journey defines planned journeys and departures as produced by the upstream trip planner,
// together with the realtime annotations attached to them.
package journey

import (
	"time"

	"github.com/livetransit/livetransit/internal/geo"
	"github.com/livetransit/livetransit/internal/gtfsrt"
)

// Mode is a transport mode derived from the planner's product class.
type Mode string

const (
	ModeTrain     Mode = "train"
	ModeMetro     Mode = "metro"
	ModeLightRail Mode = "light_rail"
	ModeBus       Mode = "bus"
	ModeCoach     Mode = "coach"
	ModeFerry     Mode = "ferry"
	ModeSchoolBus Mode = "school_bus"
	ModeWalk      Mode = "walk"
	ModeUnknown   Mode = "unknown"
)

// Product classes used by the trip planner.
const (
	ClassTrain     = 1
	ClassMetro     = 2
	ClassLightRail = 4
	ClassBus       = 5
	ClassCoach     = 7
	ClassFerry     = 9
	ClassSchoolBus = 11
	ClassFootpath  = 99
	ClassWalk      = 100
)

var classModes = map[int]Mode{
	ClassTrain:     ModeTrain,
	ClassMetro:     ModeMetro,
	ClassLightRail: ModeLightRail,
	ClassBus:       ModeBus,
	ClassCoach:     ModeCoach,
	ClassFerry:     ModeFerry,
	ClassSchoolBus: ModeSchoolBus,
	ClassFootpath:  ModeWalk,
	ClassWalk:      ModeWalk,
}

// ModeFromClass maps a product class to a Mode.
func ModeFromClass(class int) Mode {
	if m, ok := classModes[class]; ok {
		return m
	}
	return ModeUnknown
}

// ClassesForMode returns the product classes of a mode.
func ClassesForMode(m Mode) []int {
	var classes []int
	for c, mode := range classModes {
		if mode == m {
			classes = append(classes, c)
		}
	}
	return classes
}

// RealtimeStatus classifies the realtime state of a stop event.
type RealtimeStatus string

const (
	StatusOnTime    RealtimeStatus = "on_time"
	StatusDelayed   RealtimeStatus = "delayed"
	StatusEarly     RealtimeStatus = "early"
	StatusCancelled RealtimeStatus = "cancelled"
)

// StatusForDelay classifies a delay in seconds. Anything within a minute is on time.
func StatusForDelay(seconds int) RealtimeStatus {
	switch {
	case seconds >= 60:
		return StatusDelayed
	case seconds <= -60:
		return StatusEarly
	default:
		return StatusOnTime
	}
}

// StopRealtime annotates a stop event with realtime state.
type StopRealtime struct {
	Status       RealtimeStatus `json:"status"`
	DelaySeconds int            `json:"delaySeconds"`
	DelayMinutes int            `json:"delayMinutes"`
}

// Location is a stop, platform or coordinate visited by a leg.
type Location struct {
	ID                     string            `json:"id,omitempty"`
	Name                   string            `json:"name"`
	DisassembledName       string            `json:"disassembledName,omitempty"`
	Type                   string            `json:"type,omitempty"`
	Coord                  *geo.Point        `json:"coord,omitempty"`
	ParentID               string            `json:"parentId,omitempty"`
	ParentName             string            `json:"parentName,omitempty"`
	ArrivalTimePlanned     *time.Time        `json:"arrivalTimePlanned,omitempty"`
	ArrivalTimeEstimated   *time.Time        `json:"arrivalTimeEstimated,omitempty"`
	DepartureTimePlanned   *time.Time        `json:"departureTimePlanned,omitempty"`
	DepartureTimeEstimated *time.Time        `json:"departureTimeEstimated,omitempty"`
	Properties             map[string]string `json:"properties,omitempty"`
	Realtime               *StopRealtime     `json:"realtime,omitempty"`
}

func shifted(t *time.Time, rt *StopRealtime) *time.Time {
	if t == nil || rt == nil || rt.DelaySeconds == 0 || rt.Status == StatusCancelled {
		return t
	}
	v := t.Add(time.Duration(rt.DelaySeconds) * time.Second)
	return &v
}

// EffectiveArrival returns the estimated arrival, else the planned arrival shifted by any realtime delay.
func (l Location) EffectiveArrival() *time.Time {
	if l.ArrivalTimeEstimated != nil {
		return l.ArrivalTimeEstimated
	}
	return shifted(l.ArrivalTimePlanned, l.Realtime)
}

// EffectiveDeparture returns the estimated departure, else the planned departure shifted by any realtime delay.
func (l Location) EffectiveDeparture() *time.Time {
	if l.DepartureTimeEstimated != nil {
		return l.DepartureTimeEstimated
	}
	return shifted(l.DepartureTimePlanned, l.Realtime)
}

// Product is the planner's product descriptor.
type Product struct {
	Class  int    `json:"class"`
	Name   string `json:"name,omitempty"`
	IconID int    `json:"iconId,omitempty"`
}

// Transportation describes the service a leg rides on.
type Transportation struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	DisassembledName string            `json:"disassembledName,omitempty"`
	Number           string            `json:"number,omitempty"`
	Description      string            `json:"description,omitempty"`
	Product          Product           `json:"product"`
	Operator         string            `json:"operator,omitempty"`
	DestinationName  string            `json:"destinationName,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// Mode returns the mode of the service.
func (t *Transportation) Mode() Mode {
	return ModeFromClass(t.Product.Class)
}

// Line returns the short line name, e.g. "T1".
func (t *Transportation) Line() string {
	switch {
	case t.DisassembledName != "":
		return t.DisassembledName
	case t.Number != "":
		return t.Number
	default:
		return t.Name
	}
}

// LegRealtime is the realtime state attached to a transit leg or departure.
type LegRealtime struct {
	TripID       string                  `json:"tripId,omitempty"`
	DelaySeconds int                     `json:"delaySeconds"`
	DelayMinutes int                     `json:"delayMinutes"`
	Cancelled    bool                    `json:"cancelled"`
	Vehicle      *gtfsrt.VehiclePosition `json:"vehicle,omitempty"`
	VehicleMatch string                  `json:"vehicleMatch,omitempty"`
}

// Leg is one planned segment of a journey.
type Leg struct {
	Origin               Location          `json:"origin"`
	Destination          Location          `json:"destination"`
	Transportation       *Transportation   `json:"transportation,omitempty"`
	StopSequence         []Location        `json:"stopSequence,omitempty"`
	Coords               []geo.Point       `json:"coords,omitempty"`
	Duration             int               `json:"duration"`
	Distance             int               `json:"distance,omitempty"`
	IsRealtimeControlled bool              `json:"isRealtimeControlled,omitempty"`
	Properties           map[string]string `json:"properties,omitempty"`
	Realtime             *LegRealtime      `json:"realtime,omitempty"`
}

// IsWalking reports whether the leg is a walk. A leg without transportation is a walk.
func (l *Leg) IsWalking() bool {
	if l.Transportation == nil {
		return true
	}
	c := l.Transportation.Product.Class
	return c == ClassFootpath || c == ClassWalk
}

// IsCancelled reports whether realtime marked the leg cancelled.
func (l *Leg) IsCancelled() bool {
	return l.Realtime != nil && l.Realtime.Cancelled
}

// WalkingMeters returns the walked distance of a walking leg, estimated from its
// duration when the planner gave no distance.
func (l *Leg) WalkingMeters() float64 {
	if !l.IsWalking() {
		return 0
	}
	if l.Distance > 0 {
		return float64(l.Distance)
	}
	if len(l.Coords) > 1 {
		return geo.PathLength(l.Coords)
	}
	return float64(l.Duration) * geo.WalkingSpeed
}

// Ticket is one fare option.
type Ticket struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	Person       string  `json:"person,omitempty"`
	PriceBrutto  float64 `json:"priceBrutto"`
	PriceStation float64 `json:"priceStation,omitempty"`
}

// Fare groups the fare options of a journey.
type Fare struct {
	Tickets []Ticket `json:"tickets,omitempty"`
}

// Journey is an ordered, non-empty sequence of legs.
type Journey struct {
	Legs         []Leg `json:"legs"`
	Interchanges int   `json:"interchanges"`
	Fare         *Fare `json:"fare,omitempty"`

	RealtimeDelayMinutes int            `json:"realtimeDelayMinutes"`
	HasCancellations     bool           `json:"hasCancellations"`
	Alerts               []gtfsrt.Alert `json:"alerts,omitempty"`
}

// DepartureTime returns the effective departure of the first leg.
func (j *Journey) DepartureTime() *time.Time {
	if len(j.Legs) == 0 {
		return nil
	}
	return j.Legs[0].Origin.EffectiveDeparture()
}

// ArrivalTime returns the effective arrival of the last leg.
func (j *Journey) ArrivalTime() *time.Time {
	if len(j.Legs) == 0 {
		return nil
	}
	return j.Legs[len(j.Legs)-1].Destination.EffectiveArrival()
}

// Duration returns the effective door-to-door duration, falling back to the
// sum of leg durations when times are missing.
func (j *Journey) Duration() time.Duration {
	dep, arr := j.DepartureTime(), j.ArrivalTime()
	if dep != nil && arr != nil && !arr.Before(*dep) {
		return arr.Sub(*dep)
	}
	var total int
	for _, l := range j.Legs {
		total += l.Duration
	}
	return time.Duration(total)*time.Second + time.Duration(j.RealtimeDelayMinutes)*time.Minute
}

// WalkingMeters returns the total walked distance.
func (j *Journey) WalkingMeters() float64 {
	var total float64
	for i := range j.Legs {
		total += j.Legs[i].WalkingMeters()
	}
	return total
}

// TransitLegs returns the number of non-walking legs.
func (j *Journey) TransitLegs() int {
	n := 0
	for i := range j.Legs {
		if !j.Legs[i].IsWalking() {
			n++
		}
	}
	return n
}

// Transfers returns the interchange count reported by the planner,
// else one less than the number of transit legs.
func (j *Journey) Transfers() int {
	if j.Interchanges > 0 {
		return j.Interchanges
	}
	if n := j.TransitLegs(); n > 1 {
		return n - 1
	}
	return 0
}

// Departure is one stop event on a departure board.
type Departure struct {
	Location               Location          `json:"location"`
	DepartureTimePlanned   *time.Time        `json:"departureTimePlanned,omitempty"`
	DepartureTimeEstimated *time.Time        `json:"departureTimeEstimated,omitempty"`
	IsRealtimeControlled   bool              `json:"isRealtimeControlled,omitempty"`
	Transportation         Transportation    `json:"transportation"`
	Properties             map[string]string `json:"properties,omitempty"`
	Realtime               *LegRealtime      `json:"realtime,omitempty"`
}

// EffectiveTime returns the estimated departure if present, else the planned one.
func (d *Departure) EffectiveTime() *time.Time {
	if d.DepartureTimeEstimated != nil {
		return d.DepartureTimeEstimated
	}
	return d.DepartureTimePlanned
}

// IsCancelled reports whether realtime marked the departure cancelled.
func (d *Departure) IsCancelled() bool {
	return d.Realtime != nil && d.Realtime.Cancelled
}

// Stop is a stop-finder result.
type Stop struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     string     `json:"type,omitempty"`
	Coord    *geo.Point `json:"coord,omitempty"`
	ParentID string     `json:"parentId,omitempty"`
	Modes    []Mode     `json:"modes,omitempty"`
}
