package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/livetransit/livetransit/internal/gtfsrt"
)

// Job types handled by the worker.
const (
	JobFeedRefresh = "feed_refresh"
	JobHealthCheck = "health_check"
)

// ErrUnknownJob is returned for a job type the worker does not handle.
var ErrUnknownJob = errors.New("unknown job type")

// RefreshMessage represents a feed refresh job message.
type RefreshMessage struct {
	JobType string   `json:"job_type"`
	Feeds   []string `json:"feeds,omitempty"`
	Kinds   []string `json:"kinds,omitempty"`
}

// RunJob executes a job message.
func (j *RefreshJob) RunJob(ctx context.Context, msg RefreshMessage) error {
	switch msg.JobType {
	case JobFeedRefresh:
		return j.feedRefresh(ctx, msg)
	case JobHealthCheck:
		return j.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (j *RefreshJob) feedRefresh(ctx context.Context, msg RefreshMessage) error {
	kinds := make([]gtfsrt.Kind, 0, len(msg.Kinds))
	for _, k := range msg.Kinds {
		kinds = append(kinds, gtfsrt.Kind(k))
	}
	sources := Filter(j.config.Sources(), msg.Feeds, kinds)
	if len(sources) == 0 {
		return fmt.Errorf("no sources match feeds %v kinds %v", msg.Feeds, msg.Kinds)
	}

	result := j.RunSources(ctx, sources)

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalSources)
	}
	return nil
}

// healthCheck refreshes a single source to verify upstream connectivity.
func (j *RefreshJob) healthCheck(ctx context.Context) error {
	sources := j.config.Sources()
	if len(sources) == 0 {
		return errors.New("no sources configured")
	}

	result := j.RunSources(ctx, sources[:1])
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}

	j.logger.Debug().Msg("health check passed")
	return nil
}
