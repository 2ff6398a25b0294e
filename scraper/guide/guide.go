// Package guide is the rules-based pricing guide consulted when marketplaces
// return nothing. Each rule family is an independent tier with its own
// confidence and pawn rate: metal melt value, a brand-scoped marketplace
// lookup, and a static retro games table.
package guide

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pawn-estimator/cache"
	"pawn-estimator/models"
	"pawn-estimator/scraper"
	"pawn-estimator/utils"
)

const Source = "guide"

// Config controls the guide's external lookups.
type Config struct {
	// SpotURL serves current metal prices per troy ounce as JSON.
	SpotURL string
	// ReferenceTTL is how long spot prices are reused.
	ReferenceTTL time.Duration
}

type tier struct {
	name     string
	estimate func(ctx context.Context, query string) (*models.PriceEstimate, error)
}

// Guide implements scraper.Connector over its tiers.
type Guide struct {
	tiers   []tier
	timeout time.Duration
	health  *scraper.HealthTracker
	logger  *utils.Logger
}

// New builds the guide. delegate is the generic marketplace connector used
// for branded watches, sneakers and electronics; it may be nil.
func New(cfg Config, delegate scraper.Connector, store *cache.Store, d scraper.Deps) *Guide {
	d = d.WithDefaults()
	if cfg.ReferenceTTL <= 0 {
		cfg.ReferenceTTL = 24 * time.Hour
	}
	logger := d.Logger.With("source", Source)

	g := &Guide{
		timeout: d.Timeout,
		health:  scraper.NewHealthTracker(Source, d.Now),
		logger:  logger,
	}

	var spot SpotSource
	if cfg.SpotURL != "" {
		spot = NewHTTPSpotSource(cfg.SpotURL, d.HTTP, store, cfg.ReferenceTTL, logger)
	}
	g.tiers = []tier{
		{name: "metals", estimate: metalsTier(spot)},
		{name: "delegated", estimate: delegatedTier(delegate)},
		{name: "games", estimate: gamesTier},
	}
	return g
}

func (g *Guide) Name() string { return Source }

func (g *Guide) Health() models.SourceHealth {
	return g.health.Snapshot(-1)
}

// Estimate returns the first tier whose rules match the query.
func (g *Guide) Estimate(ctx context.Context, query string) (est *models.PriceEstimate, err error) {
	defer func() { g.health.Record(err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%s: %w", Source, models.ErrInvalidQuery)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// A tier that failed in transit may have matched; that is not "no data".
	var transient error
	found, idx, err := scraper.FirstSuccess(ctx, g.tiers, func(ctx context.Context, t tier) ([]*models.PriceEstimate, error) {
		est, err := t.estimate(ctx, query)
		if err != nil {
			if o := models.Classify(err); transient == nil && (o == models.OutcomeTransient || o == models.OutcomeTimeout) {
				transient = err
			}
			return nil, err
		}
		return []*models.PriceEstimate{est}, nil
	})
	if err != nil {
		g.logger.Debug("[guide] %q: no tier matched: %v", query, err)
		if transient != nil {
			return nil, models.Transient(Source, transient)
		}
		return nil, models.NoData(Source, "no guide rule matched")
	}

	g.logger.Debug("[guide] %q → %s tier, $%.2f", query, g.tiers[idx].name, found[0].MarketValue)
	return found[0], nil
}

// ruleEstimate builds a single-observation estimate for a matched rule.
func ruleEstimate(category string, market, pawnRate, confidence float64, note string) *models.PriceEstimate {
	market = round2(market)
	return &models.PriceEstimate{
		Source:      Source,
		MarketValue: market,
		PawnValue:   round2(market * pawnRate),
		Confidence:  confidence,
		DataPoints:  1,
		PriceRange:  models.PriceRange{Min: market, Max: market},
		Note:        note,
		Category:    category,
	}
}

// words lower-cases and splits a query on anything that is not a letter or digit.
func words(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '-')
	})
}
