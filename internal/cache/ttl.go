// Package cache provides the small time-to-live stores the planner relies
// on: entries are immutable until expiry and writes are last-writer-wins,
// so staleness is a bounded approximation, never a correctness hazard.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLStore is a thread-safe key-value store with a fixed per-store TTL.
type TTLStore[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]entry[V]
	ttl     time.Duration
	zeroVal V

	// now is swappable in tests.
	now func() time.Time
}

// NewTTLStore creates a store whose entries expire ttl after being set.
func NewTTLStore[K comparable, V any](ttl time.Duration) *TTLStore[K, V] {
	return &TTLStore[K, V]{
		items: make(map[K]entry[V], 64),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the value for key if present and unexpired.
func (s *TTLStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return s.zeroVal, false
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check: a fresher write may have landed meanwhile.
		if cur, ok := s.items[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return s.zeroVal, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (s *TTLStore[K, V]) Set(key K, value V) {
	s.mu.Lock()
	s.items[key] = entry[V]{value: value, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
}

// Size returns the number of entries, expired ones included.
func (s *TTLStore[K, V]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Purge drops every expired entry. Callers with long-lived stores run this
// periodically; the planner's small stores rely on Get-side eviction.
func (s *TTLStore[K, V]) Purge() {
	now := s.now()
	s.mu.Lock()
	for k, e := range s.items {
		if now.After(e.expiresAt) {
			delete(s.items, k)
		}
	}
	s.mu.Unlock()
}
