package scraper

import (
	"errors"
	"strings"
	"testing"
	"time"

	"pawn-estimator/models"
)

func records(prices ...float64) []models.ListingRecord {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.ListingRecord, len(prices))
	for i, p := range prices {
		out[i] = models.ListingRecord{Title: "item", Price: p, ObservedAt: base.Add(time.Duration(i) * time.Hour), Source: "test"}
	}
	return out
}

func TestBuildEstimateMean(t *testing.T) {
	est, err := BuildEstimate("test", records(100, 110, 120), DefaultEstimatePolicy())
	if err != nil {
		t.Fatalf("BuildEstimate: %v", err)
	}
	if est.MarketValue != 110 || est.PawnValue != 33 {
		t.Errorf("market=%.2f pawn=%.2f; want 110 and 33", est.MarketValue, est.PawnValue)
	}
	if est.Confidence != 0.46 {
		t.Errorf("confidence = %.2f; want 0.46", est.Confidence)
	}
	if est.PriceRange.Min != 100 || est.PriceRange.Max != 120 {
		t.Errorf("range = %+v", est.PriceRange)
	}
	if est.Samples[0].Price != 120 {
		t.Errorf("samples should start with the most recent listing, got %+v", est.Samples[0])
	}
	if err := est.Validate(); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestBuildEstimateTrimsOutliers(t *testing.T) {
	est, err := BuildEstimate("test", records(100, 100, 105, 110, 110, 5000), DefaultEstimatePolicy())
	if err != nil {
		t.Fatalf("BuildEstimate: %v", err)
	}
	if est.DataPoints != 5 || est.MarketValue != 105 {
		t.Errorf("dataPoints=%d market=%.2f; want 5 and 105", est.DataPoints, est.MarketValue)
	}
	if !strings.Contains(est.Note, "1 outliers removed") {
		t.Errorf("note = %q", est.Note)
	}
}

func TestBuildEstimateEmptyIsNoData(t *testing.T) {
	_, err := BuildEstimate("test", records(0, 0), DefaultEstimatePolicy())
	if !errors.Is(err, models.ErrNoData) {
		t.Errorf("err = %v; want ErrNoData", err)
	}
}

func TestConfidenceCap(t *testing.T) {
	p := EstimatePolicy{BaseConfidence: 0.5, ConfidenceStep: 0.05, MaxConfidence: 0.9}
	tests := []struct {
		n    int
		want float64
	}{
		{0, 0},
		{1, 0.55},
		{4, 0.7},
		{100, 0.9},
	}
	for _, tt := range tests {
		if got := Confidence(tt.n, p); got != tt.want {
			t.Errorf("Confidence(%d) = %.2f; want %.2f", tt.n, got, tt.want)
		}
	}
}

func TestBuildEstimateSampleSize(t *testing.T) {
	p := DefaultEstimatePolicy()
	p.SampleSize = 2
	est, err := BuildEstimate("test", records(10, 11, 12, 13), p)
	if err != nil {
		t.Fatalf("BuildEstimate: %v", err)
	}
	if len(est.Samples) != 2 {
		t.Errorf("got %d samples; want 2", len(est.Samples))
	}
}
