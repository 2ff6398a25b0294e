package scraper

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"pawn-estimator/models"
)

// EstimatePolicy turns cleaned listings into a PriceEstimate for one source.
type EstimatePolicy struct {
	PawnRate       float64
	BaseConfidence float64
	ConfidenceStep float64
	MaxConfidence  float64
	// SampleSize caps the listings attached to the estimate.
	SampleSize int
	// Label names the kind of listings in the note, e.g. "sold".
	Label string
}

// DefaultEstimatePolicy suits an unauthenticated scraping connector.
func DefaultEstimatePolicy() EstimatePolicy {
	return EstimatePolicy{
		PawnRate:       models.DefaultPawnRate,
		BaseConfidence: 0.4,
		ConfidenceStep: 0.02,
		MaxConfidence:  0.75,
		SampleSize:     5,
		Label:          "listed",
	}
}

// outlierMinRecords is the smallest sample the IQR trim is applied to.
const outlierMinRecords = 5

// BuildEstimate reduces listings to an estimate. An empty input is ErrNoData,
// never a zero-valued estimate with confidence.
func BuildEstimate(source string, records []models.ListingRecord, p EstimatePolicy) (*models.PriceEstimate, error) {
	priced := make([]models.ListingRecord, 0, len(records))
	for _, r := range records {
		if r.Price > 0 {
			priced = append(priced, r)
		}
	}
	if len(priced) == 0 {
		return nil, models.NoData(source, "no priced listings")
	}

	kept := trimOutliers(priced)

	total := decimal.Zero
	minPrice, maxPrice := kept[0].Price, kept[0].Price
	for _, r := range kept {
		total = total.Add(decimal.NewFromFloat(r.Price))
		minPrice = math.Min(minPrice, r.Price)
		maxPrice = math.Max(maxPrice, r.Price)
	}
	mean := total.Div(decimal.NewFromInt(int64(len(kept))))
	market := round2(mean)
	pawn := round2(mean.Mul(decimal.NewFromFloat(pawnRate(p.PawnRate))))

	label := p.Label
	if label == "" {
		label = "listed"
	}
	note := fmt.Sprintf("Based on %d %s listings", len(kept), label)
	if dropped := len(priced) - len(kept); dropped > 0 {
		note += fmt.Sprintf(" (%d outliers removed)", dropped)
	}

	est := &models.PriceEstimate{
		Source:      source,
		MarketValue: market,
		PawnValue:   math.Min(pawn, market),
		Confidence:  Confidence(len(kept), p),
		DataPoints:  len(kept),
		PriceRange:  models.PriceRange{Min: minPrice, Max: maxPrice},
		Note:        note,
		Samples:     samples(kept, p.SampleSize),
	}
	return est, nil
}

// Confidence grows linearly with the number of data points up to the cap.
func Confidence(dataPoints int, p EstimatePolicy) float64 {
	if dataPoints <= 0 {
		return 0
	}
	c := p.BaseConfidence + p.ConfidenceStep*float64(dataPoints)
	if p.MaxConfidence > 0 && c > p.MaxConfidence {
		c = p.MaxConfidence
	}
	return math.Max(0, math.Min(1, roundFloat(c)))
}

// trimOutliers drops prices outside 1.5×IQR once there are enough records.
func trimOutliers(records []models.ListingRecord) []models.ListingRecord {
	if len(records) < outlierMinRecords {
		return records
	}
	prices := make([]float64, len(records))
	for i, r := range records {
		prices[i] = r.Price
	}
	sort.Float64s(prices)

	q1, q3 := quantile(prices, 0.25), quantile(prices, 0.75)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	kept := make([]models.ListingRecord, 0, len(records))
	for _, r := range records {
		if r.Price >= lo && r.Price <= hi {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return records
	}
	return kept
}

// quantile interpolates linearly between closest ranks of sorted values.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// samples keeps the most recent listings.
func samples(records []models.ListingRecord, n int) []models.ListingRecord {
	if n <= 0 {
		return nil
	}
	out := make([]models.ListingRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.After(out[j].ObservedAt)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func pawnRate(r float64) float64 {
	if r <= 0 || r > 1 {
		return models.DefaultPawnRate
	}
	return r
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func roundFloat(f float64) float64 {
	return round2(decimal.NewFromFloat(f))
}
