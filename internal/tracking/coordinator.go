package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/journey"
)

var (
	// ErrNoActiveSession is returned when the traveler has no tracked journey.
	ErrNoActiveSession = errors.New("no active tracking session")

	// ErrEmptyJourney is returned when tracking is started on a journey without legs.
	ErrEmptyJourney = errors.New("journey has no legs")
)

// Update is one live-activity push.
type Update struct {
	ActivityID uuid.UUID    `json:"activityId"`
	TravelerID string       `json:"travelerId"`
	State      ContentState `json:"state"`
	Alert      string       `json:"alert,omitempty"`
	Final      bool         `json:"final"`
	SentAt     time.Time    `json:"sentAt"`
}

// Publisher delivers live-activity updates to the traveler's device.
type Publisher interface {
	Publish(ctx context.Context, u Update) error
}

// MergeFunc re-applies current realtime data to a journey.
type MergeFunc func(journey.Journey) journey.Journey

// Status describes a tracking session.
type Status struct {
	ActivityID uuid.UUID    `json:"activityId"`
	TravelerID string       `json:"travelerId"`
	StartedAt  time.Time    `json:"startedAt"`
	LegIndex   int          `json:"legIndex"`
	State      ContentState `json:"state"`
	Detection  Detection    `json:"detection"`
	Active     bool         `json:"active"`
}

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	// Publisher delivers updates. Required.
	Publisher Publisher

	// Logger for coordinator operations.
	Logger zerolog.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Coordinator tracks at most one journey per traveler and pushes state changes.
type Coordinator struct {
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	activityID uuid.UUID
	travelerID string
	startedAt  time.Time
	cursor     Cursor

	// mu serializes samples and refreshes of this session.
	mu         sync.Mutex
	journey    journey.Journey
	legs       []JourneyLeg
	lastSample *Sample
	detection  Detection
	pushed     *ContentState
	ended      bool
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		publisher: cfg.Publisher,
		logger:    cfg.Logger.With().Str("component", "tracking").Logger(),
		now:       now,
		sessions:  make(map[string]*session),
	}
}

// Start begins tracking a journey for a traveler, ending any session already
// running for them. The initial state is computed at the journey origin and pushed.
func (c *Coordinator) Start(ctx context.Context, travelerID string, j journey.Journey) (Status, error) {
	legs, err := LegsFromJourney(j)
	if err != nil {
		return Status{}, err
	}

	now := c.now()
	s := &session{
		activityID: uuid.New(),
		travelerID: travelerID,
		startedAt:  now,
		journey:    j,
		legs:       legs,
	}

	c.mu.Lock()
	prev := c.sessions[travelerID]
	c.sessions[travelerID] = s
	c.mu.Unlock()

	if prev != nil {
		c.end(ctx, prev)
	}

	c.logger.Info().
		Str("traveler_id", travelerID).
		Str("activity_id", s.activityID.String()).
		Int("legs", len(legs)).
		Msg("tracking started")

	origin := Sample{Location: legs[0].Origin.Coord, Timestamp: now}
	return c.apply(ctx, s, origin, false)
}

// HandleSample feeds one location sample into the traveler's session. Foreground
// and background samples are serialized per session.
func (c *Coordinator) HandleSample(ctx context.Context, travelerID string, sample Sample) (Status, error) {
	s, ok := c.session(travelerID)
	if !ok {
		return Status{}, ErrNoActiveSession
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = c.now()
	}
	return c.apply(ctx, s, sample, false)
}

// RefreshRealtime re-merges every tracked journey and pushes sessions whose state
// changed. It returns the number of updates pushed.
func (c *Coordinator) RefreshRealtime(ctx context.Context, merge MergeFunc) int {
	c.mu.Lock()
	sessions := make([]*session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	pushed := 0
	for _, s := range sessions {
		if ctx.Err() != nil {
			break
		}

		s.mu.Lock()
		if s.ended {
			s.mu.Unlock()
			continue
		}
		if legs, err := LegsFromJourney(merge(s.journey)); err == nil {
			s.legs = legs
		}
		sample := s.lastSample
		if sample == nil {
			sample = &Sample{Location: s.legs[0].Origin.Coord}
		}
		before := s.pushed
		s.mu.Unlock()

		refreshed := *sample
		if now := c.now(); now.After(refreshed.Timestamp) {
			refreshed.Timestamp = now
		}

		st, err := c.apply(ctx, s, refreshed, true)
		if err != nil {
			continue
		}
		if !st.Active || c.lastPushed(s) != before {
			pushed++
		}
	}
	return pushed
}

// Stop ends tracking for a traveler. Stopping a traveler without a session is a no-op.
func (c *Coordinator) Stop(ctx context.Context, travelerID string) error {
	c.mu.Lock()
	s, ok := c.sessions[travelerID]
	if ok {
		delete(c.sessions, travelerID)
	}
	c.mu.Unlock()

	if ok {
		c.end(ctx, s)
	}
	return nil
}

// end marks a session ended and pushes its last state as final.
func (c *Coordinator) end(ctx context.Context, s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true

	state := NewContentState(s.detection)
	if s.pushed != nil {
		state = *s.pushed
	}
	c.publish(ctx, s, state, "", true)

	c.logger.Info().
		Str("traveler_id", s.travelerID).
		Str("activity_id", s.activityID.String()).
		Msg("tracking stopped")
}

// State returns the current session of a traveler.
func (c *Coordinator) State(travelerID string) (Status, error) {
	s, ok := c.session(travelerID)
	if !ok {
		return Status{}, ErrNoActiveSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status(), nil
}

// Active returns the number of tracked travelers.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Run consumes a sample stream until it closes, the context is done, or the
// journey completes.
func (c *Coordinator) Run(ctx context.Context, travelerID string, samples <-chan Sample) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-samples:
			if !ok {
				return nil
			}
			st, err := c.HandleSample(ctx, travelerID, sample)
			if errors.Is(err, ErrNoActiveSession) {
				return nil
			}
			if err != nil {
				return err
			}
			if st.State.Phase == PhaseCompleted {
				return nil
			}
		}
	}
}

func (c *Coordinator) session(travelerID string) (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[travelerID]
	return s, ok
}

func (c *Coordinator) lastPushed(s *session) *ContentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushed
}

// apply runs one detection on a session and pushes when warranted. Completion
// always pushes a final update and ends the session.
func (c *Coordinator) apply(ctx context.Context, s *session, sample Sample, refresh bool) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return Status{}, ErrNoActiveSession
	}

	d := s.cursor.Advance(sample, s.legs)
	s.detection = d
	if !refresh {
		s.lastSample = &sample
	}
	state := NewContentState(d)

	if d.Phase == PhaseCompleted {
		s.ended = true
		c.publish(ctx, s, state, d.AlertMessage, true)
		c.remove(s)

		c.logger.Info().
			Str("traveler_id", s.travelerID).
			Str("activity_id", s.activityID.String()).
			Msg("journey completed")

		return s.status(), nil
	}

	if ShouldPush(s.pushed, state) {
		alert := ""
		if d.ShouldAlert && (s.pushed == nil || !s.pushed.Alert) {
			alert = d.AlertMessage
		}
		if c.publish(ctx, s, state, alert, false) {
			s.pushed = &state
		}
	}

	return s.status(), nil
}

// publish delivers an update. Delivery failures are logged, not returned, so a
// later sample retries.
func (c *Coordinator) publish(ctx context.Context, s *session, state ContentState, alert string, final bool) bool {
	u := Update{
		ActivityID: s.activityID,
		TravelerID: s.travelerID,
		State:      state,
		Alert:      alert,
		Final:      final,
		SentAt:     c.now(),
	}
	if err := c.publisher.Publish(ctx, u); err != nil {
		c.logger.Warn().
			Err(err).
			Str("traveler_id", s.travelerID).
			Str("phase", string(state.Phase)).
			Bool("final", final).
			Msg("failed to publish live activity update")
		return false
	}
	c.logger.Debug().
		Str("traveler_id", s.travelerID).
		Str("phase", string(state.Phase)).
		Float64("progress", state.Progress).
		Bool("final", final).
		Msg("live activity update published")
	return true
}

// remove drops the session if it is still the traveler's current one.
func (c *Coordinator) remove(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.sessions[s.travelerID]; ok && cur == s {
		delete(c.sessions, s.travelerID)
	}
}

func (s *session) status() Status {
	st := Status{
		ActivityID: s.activityID,
		TravelerID: s.travelerID,
		StartedAt:  s.startedAt,
		LegIndex:   s.detection.LegIndex,
		State:      NewContentState(s.detection),
		Detection:  s.detection,
		Active:     !s.ended,
	}
	return st
}
