package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNoData means the source answered but yielded no usable listings.
	ErrNoData = errors.New("no usable listings")
	// ErrTransient covers network failures, timeouts and anti-automation blocks.
	ErrTransient = errors.New("transient source failure")
	// ErrConfig means the source is missing credentials or identifiers.
	ErrConfig = errors.New("source misconfigured")
	// ErrQuotaExceeded means the source's call budget for the window is spent.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrInvalidQuery is the only error the engine returns to its callers.
	ErrInvalidQuery = errors.New("invalid query")
)

// QuotaError reports an exhausted quota window and how long until it resets.
type QuotaError struct {
	Source  string
	ResetIn time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: quota exceeded, resets in %d minutes", e.Source, e.MinutesUntilReset())
}

// MinutesUntilReset rounds the remaining window up to whole minutes.
func (e *QuotaError) MinutesUntilReset() int {
	return int(math.Ceil(e.ResetIn.Minutes()))
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// Transient wraps a transport-level failure so it classifies as ErrTransient.
func Transient(source string, err error) error {
	return fmt.Errorf("%s: %w: %v", source, ErrTransient, err)
}

// NoData builds the typed zero-results failure for a source.
func NoData(source, reason string) error {
	return fmt.Errorf("%s: %w: %s", source, ErrNoData, reason)
}

// SourceOutcome is the per-source status recorded for every connector call.
type SourceOutcome string

const (
	OutcomeOK        SourceOutcome = "ok"
	OutcomeNoData    SourceOutcome = "no_data"
	OutcomeTransient SourceOutcome = "transient"
	OutcomeTimeout   SourceOutcome = "timeout"
	OutcomeQuota     SourceOutcome = "quota_exceeded"
	OutcomeConfig    SourceOutcome = "config"
	OutcomeSkipped   SourceOutcome = "skipped"
)

// Classify maps a connector error onto its outcome.
func Classify(err error) SourceOutcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrQuotaExceeded):
		return OutcomeQuota
	case errors.Is(err, ErrConfig):
		return OutcomeConfig
	case errors.Is(err, ErrNoData):
		return OutcomeNoData
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeTransient
	}
}
