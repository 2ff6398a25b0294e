package utils

import (
	"sync"
	"sync/atomic"
)

// WorkerPool runs background jobs on at most a fixed number of goroutines.
// Once closed it rejects new jobs.
type WorkerPool struct {
	slots   chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64
}

// NewWorkerPool creates a pool of maxWorkers slots (at least one).
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{slots: make(chan struct{}, maxWorkers)}
}

// TrySubmit runs job only if a slot is free right now. Refused jobs are
// counted in Dropped.
func (wp *WorkerPool) TrySubmit(job func()) bool {
	if wp.closed.Load() {
		wp.dropped.Add(1)
		return false
	}
	select {
	case wp.slots <- struct{}{}:
		wp.wg.Add(1)
		go wp.run(job)
		return true
	default:
		wp.dropped.Add(1)
		return false
	}
}

func (wp *WorkerPool) run(job func()) {
	defer wp.wg.Done()
	defer func() { <-wp.slots }()
	job()
}

// Dropped counts jobs refused so far.
func (wp *WorkerPool) Dropped() int64 {
	return wp.dropped.Load()
}

// Close stops accepting jobs and waits for running ones.
func (wp *WorkerPool) Close() {
	wp.closed.Store(true)
	wp.wg.Wait()
}

// Set is a concurrency-safe set, used to drop repeated listing links.
type Set[T comparable] struct {
	mu    sync.Mutex
	items map[T]struct{}
}

func NewSet[T comparable]() *Set[T] {
	return &Set[T]{items: make(map[T]struct{})}
}

// Add reports whether v was not yet in the set.
func (s *Set[T]) Add(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[v]; ok {
		return false
	}
	s.items[v] = struct{}{}
	return true
}

func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
