// Package feedstore caches decoded realtime feed batches under short TTLs.
package feedstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is missing or expired.
var ErrNotFound = errors.New("key not found")

// Store is a key/value store with per-key expiry.
// Set must replace the value of a key atomically.
type Store interface {
	// Get returns the value of a live key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key until ttl elapses.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Keys returns the live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
