// Package resilience wraps calls to the upstream trip planner and realtime feeds
// with retries, a circuit breaker and per-provider health reporting.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and provider status.
	Name string

	// MaxRequests is the number of probe requests allowed while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// ReadyToTrip decides when the closed breaker opens.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// IsSuccessful classifies a call error. Nil uses IgnoreCanceled.
	IsSuccessful func(err error) bool

	// OnStateChange is called when the breaker changes state.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// PlannerBreakerConfig suits request-driven upstreams such as the trip planner.
// It trips on the failure ratio of the last minute and probes again after 30 seconds.
func PlannerBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: FailureRatio(5, 0.5),
	}
}

// FeedBreakerConfig suits the polled realtime feeds. One client serves every
// feed, so the failures of a single feed are interleaved with the successes of
// the others and only an upstream-wide outage produces consecutive failures.
func FeedBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: ConsecutiveFailures(3),
	}
}

// FailureRatio trips once at least minRequests were made and the share of
// failures reached ratio.
func FailureRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests || counts.Requests == 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// ConsecutiveFailures trips after n failures in a row.
func ConsecutiveFailures(n uint32) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

// IgnoreCanceled counts a call canceled by its caller as a success. A traveler
// closing the app mid-request says nothing about the upstream.
func IgnoreCanceled(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	isSuccessful := cfg.IsSuccessful
	if isSuccessful == nil {
		isSuccessful = IgnoreCanceled
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		IsSuccessful:  isSuccessful,
		OnStateChange: cfg.OnStateChange,
	})
}
