package tracking

import (
	"math"
	"sync"
	"time"
)

// ProgressPushThreshold is the progress change that alone justifies a push.
const ProgressPushThreshold = 0.05

// ContentState is the externally visible live-activity state.
type ContentState struct {
	Phase           Phase       `json:"phase"`
	NextEventTime   *time.Time  `json:"nextEventTime,omitempty"`
	DelayMinutes    int         `json:"delayMinutes"`
	Cancelled       bool        `json:"cancelled"`
	ServiceAlerts   bool        `json:"serviceAlerts"`
	Alert           bool        `json:"alert"`
	CurrentStopName string      `json:"currentStopName,omitempty"`
	NextStopName    string      `json:"nextStopName,omitempty"`
	StopsRemaining  int         `json:"stopsRemaining"`
	Progress        float64     `json:"progress"`
	Navigation      *Navigation `json:"navigation,omitempty"` // walking phases only
}

// NewContentState projects a detection onto the live-activity state.
func NewContentState(d Detection) ContentState {
	cs := ContentState{
		Phase:           d.Phase,
		NextEventTime:   d.NextEventTime,
		DelayMinutes:    d.DelayMinutes,
		Cancelled:       d.Cancelled,
		ServiceAlerts:   d.ServiceAlerts,
		Alert:           d.ShouldAlert,
		CurrentStopName: d.CurrentStopName,
		NextStopName:    d.NextStopName,
		StopsRemaining:  d.StopsRemaining,
		Progress:        math.Round(d.Progress*1000) / 1000,
	}
	if d.Phase.IsWalking() {
		cs.Navigation = d.Navigation
	}
	return cs
}

// ShouldPush reports whether next differs enough from prev to be pushed.
// A nil prev always pushes.
func ShouldPush(prev *ContentState, next ContentState) bool {
	if prev == nil {
		return true
	}
	return prev.Phase != next.Phase ||
		prev.StopsRemaining != next.StopsRemaining ||
		prev.DelayMinutes != next.DelayMinutes ||
		prev.Cancelled != next.Cancelled ||
		prev.ServiceAlerts != next.ServiceAlerts ||
		math.Abs(next.Progress-prev.Progress) > ProgressPushThreshold
}

// Cursor owns the leg index of one tracked journey. The index only moves
// forward and completion is sticky. Safe for concurrent use.
type Cursor struct {
	mu        sync.Mutex
	legIndex  int
	completed bool
}

// Advance runs detection from the current index and records the result.
// Once completed, every later call reports completed.
func (c *Cursor) Advance(s Sample, legs []JourneyLeg) Detection {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed {
		if len(legs) == 0 {
			return Detection{Phase: PhaseCompleted, Progress: 1, LegProgress: 1}
		}
		return completedDetection(legs)
	}

	d := Detect(s, legs, c.legIndex)
	if d.LegIndex > c.legIndex {
		c.legIndex = d.LegIndex
	}
	if d.Phase == PhaseCompleted {
		c.completed = true
	}
	return d
}

// LegIndex returns the current leg index.
func (c *Cursor) LegIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.legIndex
}

// Completed reports whether the journey has been completed.
func (c *Cursor) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}
