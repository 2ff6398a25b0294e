// Package cache is a read-side TTL memo of expensive lookups. Stale entries
// are evicted when read; nothing sweeps entries that are never read again.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Store maps keys to immutable (value, expiry) pairs. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New creates a Store. A nil clock uses time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{entries: make(map[string]entry), now: now}
}

// Get returns the live value for key. A stale entry is removed and reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if s.now().Before(e.expiresAt) {
		return e.value, true
	}

	s.mu.Lock()
	// Only evict if no writer replaced the entry in the meantime.
	if cur, ok := s.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return nil, false
}

// Set stores value under key until now+ttl, replacing any previous entry.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

// Len counts stored entries, stale or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Lookup is a typed Get.
func Lookup[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Key builds a cache key from an operation name, the query and an optional
// detail parameter. Queries differing only in case or outer whitespace share a key.
func Key(op, query, param string) string {
	q := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return op + "|" + q + "|" + param
}
