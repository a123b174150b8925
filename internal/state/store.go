// Package state implements the per-key request counter store backing
// stateful endpoints: per-key counters with TTL-based eviction.
package state

import (
	"sync"
	"time"
)

// DefaultTTL is the idle lifetime of a counter entry when none is configured.
const DefaultTTL = time.Hour

// entry is one counter's mutable state, guarded by the store's mutex.
type entry struct {
	count      uint64
	lastTouch  time.Time
}

// Store is a TTL-keyed counter store. A key left untouched by Increment for
// longer than the store's TTL reads as absent from Get and restarts at 1 on
// its next Increment; Sweep, run periodically by RunSweeper, removes such
// entries.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Store with the given TTL. A non-positive TTL falls back to
// DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Increment increments key's counter and returns the new value. A key that
// does not exist, or has expired, starts at 1.
func (s *Store) Increment(key string) uint64 {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.Sub(e.lastTouch) > s.ttl {
		e = &entry{}
		s.entries[key] = e
	}
	e.count++
	e.lastTouch = now
	return e.count
}

// Get returns the current count for key without incrementing it, and
// whether the key holds a live (non-expired) entry.
func (s *Store) Get(key string) (uint64, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.Sub(e.lastTouch) > s.ttl {
		return 0, false
	}
	return e.count, true
}

// Sweep removes every entry whose TTL has elapsed. Safe to call concurrently
// with Increment/Get.
func (s *Store) Sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if now.Sub(e.lastTouch) > s.ttl {
			delete(s.entries, key)
		}
	}
}

// Len reports the number of entries held, including expired ones not yet
// removed by Sweep. Intended for tests and diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RunSweeper starts a background goroutine that calls Sweep every interval
// until Stop is called. Intended to be launched once at server startup.
func (s *Store) RunSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the background sweeper started by RunSweeper, if any.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}
