// Package ratelimit paces outbound marketplace calls and enforces daily quotas.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pawn-estimator/models"
)

// Pacer enforces a minimum gap between consecutive calls. Callers block in
// Wait until the gap since the previous call has elapsed.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer allowing one call per gap. A zero gap never waits.
func NewPacer(gap time.Duration) *Pacer {
	if gap <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(gap), 1)}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Quota counts calls inside a fixed window. The window is reset lazily the
// first time a call is observed after the stored reset time.
type Quota struct {
	source string
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	used    int
	resetAt time.Time
}

// NewQuota creates a quota of max calls per window.
func NewQuota(source string, max int, window time.Duration, now func() time.Time) *Quota {
	if now == nil {
		now = time.Now
	}
	return &Quota{
		source:  source,
		max:     max,
		window:  window,
		now:     now,
		resetAt: now().Add(window),
	}
}

// Acquire consumes one call or fails with *models.QuotaError.
func (q *Quota) Acquire() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if now.After(q.resetAt) {
		q.used = 0
		q.resetAt = now.Add(q.window)
	}
	if q.used >= q.max {
		return &models.QuotaError{Source: q.source, ResetIn: q.resetAt.Sub(now)}
	}
	q.used++
	return nil
}

// Used returns the calls consumed in the current window.
func (q *Quota) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Remaining returns the calls left before the quota trips.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.now().After(q.resetAt) {
		return q.max
	}
	return q.max - q.used
}

// ResetAt is the end of the current window.
func (q *Quota) ResetAt() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.resetAt
}

// Governor combines pacing with an optional quota. Each connector owns one.
type Governor struct {
	pacer *Pacer
	quota *Quota
}

// NewGovernor builds a governor; quota may be nil for unmetered sources.
func NewGovernor(pacer *Pacer, quota *Quota) *Governor {
	if pacer == nil {
		pacer = NewPacer(0)
	}
	return &Governor{pacer: pacer, quota: quota}
}

// Acquire fails fast when the quota is already spent, otherwise waits out
// the pacing gap and only then takes a quota unit. A call abandoned while
// pacing costs nothing. A nil governor never blocks.
func (g *Governor) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	if g.quota != nil && g.quota.Remaining() <= 0 {
		return g.quota.Acquire()
	}
	if err := g.pacer.Wait(ctx); err != nil {
		return err
	}
	if g.quota != nil {
		return g.quota.Acquire()
	}
	return nil
}

// QuotaRemaining returns -1 for unmetered sources.
func (g *Governor) QuotaRemaining() int {
	if g == nil || g.quota == nil {
		return -1
	}
	return g.quota.Remaining()
}
