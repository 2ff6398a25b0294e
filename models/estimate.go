package models

import (
	"errors"
	"fmt"
	"time"
)

// DefaultPawnRate is the share of market value offered as a loan.
const DefaultPawnRate = 0.30

// PriceRange is the spread of observed prices behind an estimate.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PriceEstimate is the normalised output of one connector, or a blend of several.
type PriceEstimate struct {
	Source          string          `json:"source"`
	MarketValue     float64         `json:"marketValue"`
	PawnValue       float64         `json:"pawnValue"`
	Confidence      float64         `json:"confidence"`
	DataPoints      int             `json:"dataPoints"`
	PriceRange      PriceRange      `json:"priceRange"`
	Note            string          `json:"note"`
	Category        string          `json:"category,omitempty"`
	AlternativeTerm string          `json:"alternativeTerm,omitempty"`
	Samples         []ListingRecord `json:"samples,omitempty"`
}

// NoDataEstimate is the only legal shape of an estimate without data points.
func NoDataEstimate(source, note string) *PriceEstimate {
	return &PriceEstimate{Source: source, Note: note}
}

// HasData reports whether the estimate is backed by at least one observation.
func (e *PriceEstimate) HasData() bool {
	return e != nil && e.DataPoints > 0
}

// Validate checks the estimate invariants.
func (e *PriceEstimate) Validate() error {
	var errs []error
	if e.Confidence < 0 || e.Confidence > 1 {
		errs = append(errs, fmt.Errorf("confidence %.3f outside [0,1]", e.Confidence))
	}
	if e.PawnValue > e.MarketValue {
		errs = append(errs, fmt.Errorf("pawn value %.2f above market value %.2f", e.PawnValue, e.MarketValue))
	}
	if e.DataPoints == 0 {
		if e.Confidence != 0 {
			errs = append(errs, errors.New("confidence without data points"))
		}
		if e.MarketValue != 0 {
			errs = append(errs, errors.New("market value without data points"))
		}
		if e.Note == "" {
			errs = append(errs, errors.New("no-data estimate without a note"))
		}
	} else if e.PriceRange.Min > e.PriceRange.Max {
		errs = append(errs, fmt.Errorf("price range min %.2f above max %.2f", e.PriceRange.Min, e.PriceRange.Max))
	}
	return errors.Join(errs...)
}

// PossibleMarketRate is a corroborating estimate from a secondary source.
type PossibleMarketRate struct {
	Estimate    *PriceEstimate `json:"estimate"`
	Reliability string         `json:"reliability"`
}

// Summary condenses an aggregation for display.
type Summary struct {
	PrimarySource             string   `json:"primarySource"`
	PossibleMarketRateSources []string `json:"possibleMarketRateSources"`
	SourcesWithData           int      `json:"sourcesWithData"`
	Recommendation            string   `json:"recommendation"`
}

// AggregatedResult is built fresh per request and never mutated afterwards.
type AggregatedResult struct {
	Query               string               `json:"query"`
	Primary             *PriceEstimate       `json:"primary"`
	PossibleMarketRates []PossibleMarketRate `json:"possibleMarketRates"`
	Blended             *PriceEstimate       `json:"blended"`
	Summary             Summary              `json:"summary"`
	Timestamp           time.Time            `json:"timestamp"`
}

// SourceStatus records how one connector call went.
type SourceStatus struct {
	Source     string        `json:"source"`
	Phase      string        `json:"phase"`
	Query      string        `json:"query"`
	Outcome    SourceOutcome `json:"outcome"`
	LatencyMs  int64         `json:"latencyMs"`
	DataPoints int           `json:"dataPoints"`
	Error      string        `json:"error,omitempty"`
}

// Breakdown is an AggregatedResult with the status of every source call behind it.
type Breakdown struct {
	*AggregatedResult
	Sources []SourceStatus `json:"sources"`
}

// SourceHealth is a point-in-time view of one connector.
type SourceHealth struct {
	Source         string        `json:"source"`
	LastOutcome    SourceOutcome `json:"lastOutcome,omitempty"`
	LastError      string        `json:"lastError,omitempty"`
	LastSuccess    time.Time     `json:"lastSuccess,omitempty"`
	QuotaRemaining int           `json:"quotaRemaining"`
}

// CallerInfo is request metadata supplied by the HTTP layer.
type CallerInfo struct {
	UserID    string `json:"userId,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// SearchRecord is what the search-history recorder receives for a quick estimate.
type SearchRecord struct {
	ID          string         `json:"id"`
	Query       string         `json:"query"`
	Mode        string         `json:"mode"`
	Caller      CallerInfo     `json:"caller"`
	Sources     []SourceStatus `json:"sources"`
	MarketValue float64        `json:"marketValue"`
	PawnValue   float64        `json:"pawnValue"`
	Confidence  float64        `json:"confidence"`
	DataPoints  int            `json:"dataPoints"`
	CacheHit    bool           `json:"cacheHit"`
	Error       string         `json:"error,omitempty"`
	DurationMs  int64          `json:"durationMs"`
	CreatedAt   time.Time      `json:"createdAt"`
}
