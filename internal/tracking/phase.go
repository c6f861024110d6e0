// Package tracking follows a traveler along a journey: it detects the trip phase
// from location samples and pushes live-activity updates when the state changes.
package tracking

import (
	"fmt"
	"math"
	"time"

	"github.com/livetransit/livetransit/internal/geo"
	"github.com/livetransit/livetransit/internal/journey"
)

// Phase is the traveler's stage within a journey.
type Phase string

const (
	PhaseWalkingToStop Phase = "walking_to_stop"
	PhaseWaiting       Phase = "waiting"
	PhaseOnVehicle     Phase = "on_vehicle"
	PhaseTransferring  Phase = "transferring"
	PhaseArriving      Phase = "arriving"
	PhaseCompleted     Phase = "completed"
)

// IsWalking reports whether the phase is spent on foot.
func (p Phase) IsWalking() bool {
	return p == PhaseWalkingToStop || p == PhaseTransferring
}

// Detection radii in meters.
const (
	CompletedRadius = 100.0
	AtStopRadius    = 50.0
	NearStopRadius  = 150.0
	ArrivingRadius  = 500.0
)

// StopPoint is a stop of a transit leg.
type StopPoint struct {
	ID    string    `json:"id,omitempty"`
	Name  string    `json:"name"`
	Coord geo.Point `json:"coord"`
}

// LegEnd is the origin or destination of a tracking leg. Times are effective times.
type LegEnd struct {
	Name          string     `json:"name"`
	Coord         geo.Point  `json:"coord"`
	ArrivalTime   *time.Time `json:"arrivalTime,omitempty"`
	DepartureTime *time.Time `json:"departureTime,omitempty"`
}

// TransportSummary identifies the service of a transit leg.
type TransportSummary struct {
	Line        string       `json:"line"`
	Name        string       `json:"name,omitempty"`
	Mode        journey.Mode `json:"mode"`
	Destination string       `json:"destination,omitempty"`
}

// JourneyLeg is a leg reshaped for phase detection.
type JourneyLeg struct {
	Origin       LegEnd            `json:"origin"`
	Destination  LegEnd            `json:"destination"`
	Walking      bool              `json:"walking"`
	Transport    *TransportSummary `json:"transport,omitempty"`
	Stops        []StopPoint       `json:"stops,omitempty"`
	Distance     float64           `json:"distance"`
	DelayMinutes int               `json:"delayMinutes"`
	Cancelled    bool              `json:"cancelled"`
	Alerts       int               `json:"alerts,omitempty"` // active service alerts informing the leg
}

// Sample is one location fix from the traveler's device.
type Sample struct {
	Location  geo.Point `json:"location"`
	Speed     *float64  `json:"speed,omitempty"` // m/s, nil when unknown
	Timestamp time.Time `json:"timestamp"`
}

// Navigation guides a walking traveler to the end of the current leg.
type Navigation struct {
	Distance  float64       `json:"distance"`
	Bearing   float64       `json:"bearing"`
	Direction geo.Direction `json:"direction"`
	ETA       time.Time     `json:"eta"`
}

// Transfer describes the connection the traveler is walking to.
type Transfer struct {
	Line              string       `json:"line"`
	Mode              journey.Mode `json:"mode"`
	StopName          string       `json:"stopName"`
	DepartureTime     *time.Time   `json:"departureTime,omitempty"`
	ConnectionMinutes int          `json:"connectionMinutes"`
}

// Detection is the result of one phase detection.
type Detection struct {
	Phase           Phase       `json:"phase"`
	LegIndex        int         `json:"legIndex"`
	Progress        float64     `json:"progress"`
	LegProgress     float64     `json:"legProgress"`
	NextEventTime   *time.Time  `json:"nextEventTime,omitempty"`
	CurrentStopName string      `json:"currentStopName,omitempty"`
	NextStopName    string      `json:"nextStopName,omitempty"`
	StopsRemaining  int         `json:"stopsRemaining"`
	DelayMinutes    int         `json:"delayMinutes"`
	Cancelled       bool        `json:"cancelled"`
	ServiceAlerts   bool        `json:"serviceAlerts"`
	Navigation      *Navigation `json:"navigation,omitempty"`
	Transfer        *Transfer   `json:"transfer,omitempty"`
	ShouldAlert     bool        `json:"shouldAlert"`
	AlertMessage    string      `json:"alertMessage,omitempty"`
}

// Detect determines the traveler's phase from a sample. prevLegIndex is the leg
// index of the previous detection; the returned index is never lower.
// An empty leg list is reported as completed.
func Detect(s Sample, legs []JourneyLeg, prevLegIndex int) Detection {
	if len(legs) == 0 {
		return Detection{Phase: PhaseCompleted, Progress: 1, LegProgress: 1}
	}

	last := len(legs) - 1
	if geo.Distance(s.Location, legs[last].Destination.Coord) <= CompletedRadius {
		return completedDetection(legs)
	}

	start := prevLegIndex
	if start < 0 {
		start = 0
	}
	if start > last {
		start = last
	}

	idx := locateLeg(s.Location, legs, start)
	leg := &legs[idx]

	d := Detection{LegIndex: idx}
	d.DelayMinutes, d.Cancelled, d.ServiceAlerts = upcomingRealtime(legs, idx)

	if leg.Walking {
		detectWalking(&d, s, legs, idx)
	} else {
		detectTransit(&d, s, legs, idx)
	}

	d.Progress = clamp01((float64(idx) + d.LegProgress) / float64(len(legs)))
	return d
}

func completedDetection(legs []JourneyLeg) Detection {
	last := len(legs) - 1
	return Detection{
		Phase:           PhaseCompleted,
		LegIndex:        last,
		Progress:        1,
		LegProgress:     1,
		CurrentStopName: legs[last].Destination.Name,
	}
}

// locateLeg scans forward from start. Standing at a leg's destination moves on to
// the following leg; standing near a leg's origin keeps that leg. The first match wins.
// When no leg end is near, a traveler within NearStopRadius of a stop of a transit
// leg is on that leg, so a first fix from mid-route still finds the vehicle.
func locateLeg(p geo.Point, legs []JourneyLeg, start int) int {
	for i := start; i < len(legs); i++ {
		if geo.Distance(p, legs[i].Destination.Coord) <= AtStopRadius {
			if i < len(legs)-1 {
				return i + 1
			}
			return i
		}
		if geo.Distance(p, legs[i].Origin.Coord) <= NearStopRadius {
			return i
		}
	}
	for i := start; i < len(legs); i++ {
		if legs[i].Walking {
			continue
		}
		for _, stop := range legs[i].Stops {
			if geo.Distance(p, stop.Coord) <= NearStopRadius {
				return i
			}
		}
	}
	return start
}

// upcomingRealtime reports the delay of the current or next transit leg and
// whether any remaining leg is cancelled or has service alerts.
func upcomingRealtime(legs []JourneyLeg, idx int) (delay int, cancelled, alerts bool) {
	delaySet := false
	for i := idx; i < len(legs); i++ {
		if legs[i].Walking {
			continue
		}
		if !delaySet {
			delay = legs[i].DelayMinutes
			delaySet = true
		}
		if legs[i].Cancelled {
			cancelled = true
		}
		if legs[i].Alerts > 0 {
			alerts = true
		}
	}
	return delay, cancelled, alerts
}

func detectWalking(d *Detection, s Sample, legs []JourneyLeg, idx int) {
	leg := &legs[idx]
	if idx == 0 {
		d.Phase = PhaseWalkingToStop
	} else {
		d.Phase = PhaseTransferring
	}

	remaining := geo.Distance(s.Location, leg.Destination.Coord)
	total := leg.Distance
	if total <= 0 {
		total = geo.Distance(leg.Origin.Coord, leg.Destination.Coord)
	}
	if total > 0 {
		d.LegProgress = clamp01(1 - remaining/total)
	} else {
		d.LegProgress = 1
	}

	bearing := geo.Bearing(s.Location, leg.Destination.Coord)
	d.Navigation = &Navigation{
		Distance:  math.Round(remaining),
		Bearing:   math.Round(bearing),
		Direction: geo.Compass(bearing),
		ETA:       s.Timestamp.Add(geo.WalkingDuration(remaining)),
	}

	d.CurrentStopName = leg.Origin.Name
	d.NextStopName = leg.Destination.Name
	d.NextEventTime = leg.Destination.ArrivalTime

	if next := nextTransitLeg(legs, idx); next >= 0 {
		nl := &legs[next]
		d.NextEventTime = nl.Origin.DepartureTime
		if d.Phase == PhaseTransferring {
			d.Transfer = &Transfer{
				Line:              nl.Transport.Line,
				Mode:              nl.Transport.Mode,
				StopName:          nl.Origin.Name,
				DepartureTime:     nl.Origin.DepartureTime,
				ConnectionMinutes: connectionMinutes(legs, idx, nl.Origin.DepartureTime),
			}
		}
	}
}

func detectTransit(d *Detection, s Sample, legs []JourneyLeg, idx int) {
	leg := &legs[idx]
	last := len(legs) - 1

	distOrigin := geo.Distance(s.Location, leg.Origin.Coord)
	distDest := geo.Distance(s.Location, leg.Destination.Coord)
	dep := leg.Origin.DepartureTime

	switch {
	case distOrigin <= AtStopRadius && (dep == nil || s.Timestamp.Before(*dep)):
		d.Phase = PhaseWaiting
	case idx == last && distDest <= ArrivingRadius:
		d.Phase = PhaseArriving
	default:
		d.Phase = PhaseOnVehicle
	}

	d.LegProgress = transitFraction(s, leg)

	stopIdx := -1
	if len(leg.Stops) > 0 {
		stopIdx = nearestStop(s.Location, leg.Stops)
		d.StopsRemaining = len(leg.Stops) - 1 - stopIdx
	}

	switch {
	case d.Phase == PhaseWaiting:
		d.CurrentStopName = leg.Origin.Name
		d.NextStopName = leg.Destination.Name
		if len(leg.Stops) > 1 {
			d.NextStopName = leg.Stops[1].Name
		}
		d.NextEventTime = dep
	case stopIdx >= 0:
		d.CurrentStopName = leg.Stops[stopIdx].Name
		d.NextStopName = leg.Destination.Name
		if stopIdx+1 < len(leg.Stops) {
			d.NextStopName = leg.Stops[stopIdx+1].Name
		}
		d.NextEventTime = leg.Destination.ArrivalTime
	default:
		d.CurrentStopName = leg.Origin.Name
		d.NextStopName = leg.Destination.Name
		d.NextEventTime = leg.Destination.ArrivalTime
	}

	if d.Phase == PhaseWaiting {
		return
	}

	if stopIdx >= 0 {
		d.ShouldAlert = d.StopsRemaining <= 1
	} else {
		d.ShouldAlert = distDest <= ArrivingRadius
	}
	if d.ShouldAlert {
		d.AlertMessage = alertMessage(legs, idx)
	}
}

// transitFraction averages the elapsed-time fraction and the stop-position
// fraction, using whichever are available.
func transitFraction(s Sample, leg *JourneyLeg) float64 {
	var sum float64
	var n int

	dep, arr := leg.Origin.DepartureTime, leg.Destination.ArrivalTime
	if dep != nil && arr != nil && arr.After(*dep) {
		sum += clamp01(float64(s.Timestamp.Sub(*dep)) / float64(arr.Sub(*dep)))
		n++
	}
	if len(leg.Stops) > 1 {
		sum += float64(nearestStop(s.Location, leg.Stops)) / float64(len(leg.Stops)-1)
		n++
	}

	if n == 0 {
		return 0
	}
	return clamp01(sum / float64(n))
}

func nearestStop(p geo.Point, stops []StopPoint) int {
	points := make([]geo.Point, len(stops))
	for i, s := range stops {
		points[i] = s.Coord
	}
	return geo.NearestIndex(p, points)
}

func nextTransitLeg(legs []JourneyLeg, after int) int {
	for i := after + 1; i < len(legs); i++ {
		if !legs[i].Walking && legs[i].Transport != nil {
			return i
		}
	}
	return -1
}

// connectionMinutes is the whole minutes between arriving at the transfer and
// the next departure, never negative.
func connectionMinutes(legs []JourneyLeg, idx int, departure *time.Time) int {
	if departure == nil {
		return 0
	}
	arrival := legs[idx].Origin.ArrivalTime
	if arrival == nil && idx > 0 {
		arrival = legs[idx-1].Destination.ArrivalTime
	}
	if arrival == nil {
		arrival = legs[idx].Origin.DepartureTime
	}
	if arrival == nil {
		return 0
	}
	minutes := int(math.Floor(departure.Sub(*arrival).Minutes()))
	if minutes < 0 {
		return 0
	}
	return minutes
}

func alertMessage(legs []JourneyLeg, idx int) string {
	stop := legs[idx].Destination.Name
	if next := nextTransitLeg(legs, idx); next >= 0 {
		return fmt.Sprintf("Get off at %s to change to %s", stop, legs[next].Transport.Line)
	}
	if idx < len(legs)-1 {
		return fmt.Sprintf("Get off at %s", stop)
	}
	return fmt.Sprintf("Your destination %s is close", stop)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
