package realtime

import (
	"math"
	"sort"

	"github.com/livetransit/livetransit/internal/journey"
)

// DelayMinutes converts a delay in seconds to whole minutes, rounding to nearest.
func DelayMinutes(seconds int) int {
	return int(math.Round(float64(seconds) / 60))
}

func stopRealtime(delaySeconds int) *journey.StopRealtime {
	return &journey.StopRealtime{
		Status:       journey.StatusForDelay(delaySeconds),
		DelaySeconds: delaySeconds,
		DelayMinutes: DelayMinutes(delaySeconds),
	}
}

func cancelledStop() *journey.StopRealtime {
	return &journey.StopRealtime{Status: journey.StatusCancelled}
}

// serviceRealtime computes the realtime state of one service. It returns nil
// when neither a trip update nor a vehicle matched. timed reports whether a
// trip update supplied the delay.
func serviceRealtime(snap *Snapshot, t *journey.Transportation, props map[string]string) (rt *journey.LegRealtime, timed bool) {
	tu, tripID := lookupTripUpdate(snap, t, props)

	if tu != nil && tu.IsCanceled() {
		return &journey.LegRealtime{TripID: tripID, Cancelled: true}, true
	}

	vp, matcher := FindVehicle(vehicleQuery(t, props, tu), snap.VehiclePositions, DefaultVehicleMatchers)
	if tu == nil && vp == nil {
		return nil, false
	}

	rt = &journey.LegRealtime{TripID: tripID, Vehicle: vp, VehicleMatch: matcher}
	if tu != nil {
		rt.DelaySeconds = tu.DelaySeconds()
		rt.DelayMinutes = DelayMinutes(rt.DelaySeconds)
	}
	return rt, tu != nil
}

// MergeJourney returns a copy of j with realtime state attached. Planned times
// are left untouched. Realtime from an earlier merge is discarded, so legs
// without a match carry none and merging an already merged journey depends
// only on snap.
func MergeJourney(j journey.Journey, snap *Snapshot) journey.Journey {
	out := j
	out.Legs = make([]journey.Leg, len(j.Legs))
	copy(out.Legs, j.Legs)
	for i := range out.Legs {
		out.Legs[i].Realtime = nil
		out.Legs[i].Origin.Realtime = nil
		out.Legs[i].Destination.Realtime = nil
	}
	out.RealtimeDelayMinutes = 0
	out.HasCancellations = false
	out.Alerts = nil

	if snap == nil {
		return out
	}

	carried := 0
	for i := range out.Legs {
		leg := &out.Legs[i]

		if leg.IsWalking() {
			// Walks after a late service start and end late too.
			if carried != 0 {
				leg.Origin.Realtime = stopRealtime(carried)
				leg.Destination.Realtime = stopRealtime(carried)
			}
			continue
		}

		rt, timed := serviceRealtime(snap, leg.Transportation, leg.Properties)
		if rt == nil {
			carried = 0
			continue
		}
		leg.Realtime = rt

		if rt.Cancelled {
			leg.Origin.Realtime = cancelledStop()
			leg.Destination.Realtime = cancelledStop()
			out.HasCancellations = true
			carried = 0
			continue
		}

		if timed {
			leg.Origin.Realtime = stopRealtime(rt.DelaySeconds)
			leg.Destination.Realtime = stopRealtime(rt.DelaySeconds)
		}
		out.RealtimeDelayMinutes += rt.DelayMinutes
		carried = rt.DelaySeconds
	}

	out.Alerts = FilterAlertsForJourney(out, snap.ActiveAlerts())
	return out
}

// MergeDepartures attaches realtime state to each departure and returns them
// sorted with SortDepartures.
func MergeDepartures(deps []journey.Departure, snap *Snapshot) []journey.Departure {
	out := make([]journey.Departure, len(deps))
	copy(out, deps)

	if snap != nil {
		for i := range out {
			d := &out[i]
			rt, timed := serviceRealtime(snap, &d.Transportation, d.Properties)
			if rt == nil {
				continue
			}
			d.Realtime = rt
			if rt.Cancelled {
				d.Location.Realtime = cancelledStop()
			} else if timed {
				d.Location.Realtime = stopRealtime(rt.DelaySeconds)
			}
		}
	}

	return SortDepartures(out)
}

// SortDepartures orders departures by effective time ascending with cancelled
// departures last. Departures without a time sort after timed ones. The sort is stable.
func SortDepartures(deps []journey.Departure) []journey.Departure {
	out := make([]journey.Departure, len(deps))
	copy(out, deps)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.IsCancelled() != b.IsCancelled() {
			return !a.IsCancelled()
		}
		if a.IsCancelled() {
			return false
		}
		ta, tb := a.EffectiveTime(), b.EffectiveTime()
		switch {
		case ta == nil:
			return false
		case tb == nil:
			return true
		default:
			return ta.Before(*tb)
		}
	})

	return out
}
