package guide

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"pawn-estimator/models"
	"pawn-estimator/scraper"
)

// delegateDiscount scales the delegate's confidence: a brand-scoped query
// is a looser match than the operator's own description.
const delegateDiscount = 0.85

type brandCategory struct {
	category string
	pawnRate float64
	brands   []string
}

var brandCategories = []brandCategory{
	{"watches", 0.35, []string{"patek philippe", "audemars piguet", "tag heuer", "rolex", "omega", "breitling", "cartier", "tudor", "seiko", "longines", "panerai"}},
	{"sneakers", 0.25, []string{"air jordan", "jordan", "yeezy", "nike", "adidas", "new balance", "asics"}},
	{"electronics", 0.30, []string{"apple", "samsung", "sony", "nintendo", "microsoft", "google", "canon", "nikon", "bose", "dyson", "dell", "lenovo", "gopro"}},
}

// stopWords never count as a model token.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "with": true, "and": true, "for": true,
	"in": true, "box": true, "used": true, "new": true, "mens": true, "womens": true,
	"size": true, "watch": true, "shoes": true, "sneakers": true, "original": true,
}

// scoped is a detected brand and model.
type scoped struct {
	category string
	pawnRate float64
	query    string
}

// detectBrandModel finds a known brand and the model token(s) that follow it.
func detectBrandModel(query string) (scoped, bool) {
	w := words(query)
	joined := " " + strings.Join(w, " ") + " "

	for _, bc := range brandCategories {
		for _, brand := range bc.brands {
			idx := strings.Index(joined, " "+brand+" ")
			if idx < 0 {
				continue
			}
			rest := strings.Fields(joined[idx+len(brand)+2:])
			var model []string
			for _, tok := range rest {
				if stopWords[tok] {
					continue
				}
				model = append(model, tok)
				// A numeric token is a reference number; stop there.
				if len(model) == 2 || strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
					break
				}
			}
			if len(model) == 0 {
				return scoped{}, false
			}
			return scoped{
				category: bc.category,
				pawnRate: bc.pawnRate,
				query:    brand + " " + strings.Join(model, " "),
			}, true
		}
	}
	return scoped{}, false
}

func delegatedTier(delegate scraper.Connector) func(context.Context, string) (*models.PriceEstimate, error) {
	return func(ctx context.Context, query string) (*models.PriceEstimate, error) {
		s, ok := detectBrandModel(query)
		if !ok {
			return nil, models.NoData(Source, "no known brand and model")
		}
		if delegate == nil {
			return nil, fmt.Errorf("%s: %w: no delegate connector", Source, models.ErrConfig)
		}

		est, err := delegate.Estimate(ctx, s.query)
		if err != nil {
			return nil, err
		}
		if !est.HasData() {
			return nil, models.NoData(Source, "delegate returned no data")
		}

		out := *est
		out.Source = Source
		out.Category = s.category
		out.Confidence = round2(est.Confidence * delegateDiscount)
		out.PawnValue = round2(est.MarketValue * s.pawnRate)
		out.Note = fmt.Sprintf("%s guide: %q via %s (%s)", s.category, s.query, delegate.Name(), est.Note)
		return &out, nil
	}
}
