package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		raw  string
		want Condition
	}{
		{"Brand New", ConditionExcellent},
		{"New (Other)", ConditionExcellent},
		{"Pre-Owned", ConditionGood},
		{"Used - Like New", ConditionGood},
		{"For parts or not working", ConditionPoor},
		{"Acceptable", ConditionFair},
		{"", ConditionUnknown},
		{"Collectible", ConditionUnknown},
	}

	for _, tt := range tests {
		if got := ParseCondition(tt.raw); got != tt.want {
			t.Errorf("ParseCondition(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestEstimateValidate(t *testing.T) {
	ok := &PriceEstimate{Source: "ebay", MarketValue: 100, PawnValue: 30, Confidence: 0.7, DataPoints: 4,
		PriceRange: PriceRange{Min: 80, Max: 120}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid estimate rejected: %v", err)
	}

	if err := NoDataEstimate("ebay", "no sold listings").Validate(); err != nil {
		t.Errorf("no-data estimate rejected: %v", err)
	}

	bad := []*PriceEstimate{
		{Source: "a", MarketValue: 10, PawnValue: 20, Confidence: 0.5, DataPoints: 1},
		{Source: "b", Confidence: 0.4, Note: "x"},
		{Source: "c", MarketValue: 50, Note: "x"},
		{Source: "d", MarketValue: 50, PawnValue: 10, Confidence: 1.2, DataPoints: 2, PriceRange: PriceRange{Min: 1, Max: 2}},
		{Source: "e", MarketValue: 50, PawnValue: 10, Confidence: 0.5, DataPoints: 2, PriceRange: PriceRange{Min: 9, Max: 2}},
	}
	for _, e := range bad {
		if err := e.Validate(); err == nil {
			t.Errorf("estimate from %s should fail validation", e.Source)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want SourceOutcome
	}{
		{nil, OutcomeOK},
		{NoData("ebay", "empty page"), OutcomeNoData},
		{Transient("ebay", errors.New("connection reset")), OutcomeTransient},
		{&QuotaError{Source: "ebay", ResetIn: time.Hour}, OutcomeQuota},
		{fmt.Errorf("ebay: %w", ErrConfig), OutcomeConfig},
		{fmt.Errorf("ebay: %w", context.DeadlineExceeded), OutcomeTimeout},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q; want %q", tt.err, got, tt.want)
		}
	}
}

func TestQuotaErrorMinutes(t *testing.T) {
	e := &QuotaError{Source: "ebay", ResetIn: 90*time.Minute + time.Second}
	if e.MinutesUntilReset() != 91 {
		t.Errorf("MinutesUntilReset: got %d, want 91", e.MinutesUntilReset())
	}
	if !errors.Is(e, ErrQuotaExceeded) {
		t.Error("QuotaError should unwrap to ErrQuotaExceeded")
	}
}
