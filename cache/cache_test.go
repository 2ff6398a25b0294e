package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreExpiresOnRead(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(c.Now)

	s.Set("k", 42, time.Minute)
	if v, ok := Lookup[int](s, "k"); !ok || v != 42 {
		t.Fatalf("fresh entry: got %v %v", v, ok)
	}

	c.Advance(time.Minute)
	if _, ok := s.Get("k"); ok {
		t.Error("entry should be stale at expiry")
	}
	if s.Len() != 0 {
		t.Errorf("stale entry should be evicted on read, len=%d", s.Len())
	}
}

func TestStoreLeavesUnreadStaleEntries(t *testing.T) {
	c := &clock{now: time.Now()}
	s := New(c.Now)
	s.Set("a", "x", time.Second)
	s.Set("b", "y", time.Second)
	c.Advance(time.Hour)

	if s.Len() != 2 {
		t.Errorf("unread stale entries should remain, len=%d", s.Len())
	}
}

func TestStoreIgnoresNonPositiveTTL(t *testing.T) {
	s := New(nil)
	s.Set("k", 1, 0)
	if _, ok := s.Get("k"); ok {
		t.Error("zero TTL should not cache")
	}
}

func TestLookupWrongType(t *testing.T) {
	s := New(nil)
	s.Set("k", "text", time.Minute)
	if _, ok := Lookup[int](s, "k"); ok {
		t.Error("Lookup with wrong type should miss")
	}
}

func TestKeyNormalisesQuery(t *testing.T) {
	a := Key("quick", "  iPhone 14   Pro ", "")
	b := Key("quick", "iphone 14 pro", "")
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if Key("quick", "x", "") == Key("full", "x", "") {
		t.Error("operation must be part of the key")
	}
	if Key("full", "x", "") == Key("full", "x", "breakdown") {
		t.Error("detail parameter must be part of the key")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			for j := 0; j < 100; j++ {
				s.Set(key, j, time.Minute)
				s.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if s.Len() != 5 {
		t.Errorf("len: got %d, want 5", s.Len())
	}
}
