package feedstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryStore is an in-process Store.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for expiry. Intended for tests.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Get returns the value of a live key.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, ErrNotFound
	}

	cpy := make([]byte, len(e.value))
	copy(cpy, e.value)
	return cpy, nil
}

// Set stores a copy of value under key.
func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cpy := make([]byte, len(value))
	copy(cpy, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{value: cpy, expiresAt: s.now().Add(ttl)}
	s.evictLocked()
	return nil
}

// Keys returns the live keys with the given prefix, sorted.
func (s *InMemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var keys []string
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) && now.Before(e.expiresAt) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictLocked drops expired entries. Caller must hold the write lock.
func (s *InMemoryStore) evictLocked() {
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
