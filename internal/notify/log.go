package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/livetransit/livetransit/internal/tracking"
)

// LogPublisher writes updates to the log. It is used when no push transport is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

var _ tracking.Publisher = (*LogPublisher)(nil)

// NewLogPublisher creates a log publisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "notify").Logger()}
}

// Publish logs the update.
func (p *LogPublisher) Publish(_ context.Context, u tracking.Update) error {
	evt := p.logger.Info().
		Str("traveler_id", u.TravelerID).
		Str("activity_id", u.ActivityID.String()).
		Str("phase", string(u.State.Phase)).
		Float64("progress", u.State.Progress).
		Int("delay_minutes", u.State.DelayMinutes).
		Int("stops_remaining", u.State.StopsRemaining).
		Bool("final", u.Final)
	if u.Alert != "" {
		evt = evt.Str("alert", u.Alert)
	}
	evt.Msg("live activity update")
	return nil
}
