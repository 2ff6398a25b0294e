package utils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSetAdd(t *testing.T) {
	s := NewSet[string]()

	if !s.Add("https://example.com/1") {
		t.Error("first Add should return true")
	}
	if s.Add("https://example.com/1") {
		t.Error("second Add of the same link should return false")
	}
	if s.Len() != 1 {
		t.Errorf("len: got %d, want 1", s.Len())
	}
}

func TestSetConcurrentAdd(t *testing.T) {
	s := NewSet[string]()
	var added int64

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("https://example.com/same") {
				atomic.AddInt64(&added, 1)
			}
		}()
	}
	wg.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestWorkerPoolTrySubmitWhenSaturated(t *testing.T) {
	pool := NewWorkerPool(1)
	release := make(chan struct{})

	if !pool.TrySubmit(func() { <-release }) {
		t.Fatal("first TrySubmit should start on an idle pool")
	}
	if pool.TrySubmit(func() {}) {
		t.Error("TrySubmit should refuse while the only worker is busy")
	}

	close(release)
	pool.Close()

	if pool.Dropped() != 1 {
		t.Errorf("dropped: got %d, want 1", pool.Dropped())
	}
}

func TestWorkerPoolClose(t *testing.T) {
	pool := NewWorkerPool(2)
	var ran atomic.Int32

	if !pool.TrySubmit(func() {
		time.Sleep(20 * time.Millisecond)
		ran.Add(1)
	}) {
		t.Fatal("TrySubmit should start on an idle pool")
	}
	pool.Close()

	if ran.Load() != 1 {
		t.Error("Close should wait for running jobs")
	}
	if pool.TrySubmit(func() { ran.Add(1) }) || pool.TrySubmit(func() { ran.Add(1) }) {
		t.Error("a closed pool should refuse jobs")
	}
	if pool.Dropped() != 2 {
		t.Errorf("dropped: got %d, want 2", pool.Dropped())
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewDiscardLogger()}
	calls := 0

	err := r.Do(context.Background(), "flaky", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewDiscardLogger()}
	sentinel := errors.New("still down")

	err := r.Do(context.Background(), "down", func(context.Context) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, Logger: NewDiscardLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, "cancelled", func(context.Context) error { return errors.New("boom") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
