// Package pricehistory prices collectibles from the PriceCharting catalogue,
// which tracks loose, complete-in-box and new prices per product.
package pricehistory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pawn-estimator/models"
	"pawn-estimator/ratelimit"
	"pawn-estimator/scraper"
	"pawn-estimator/utils"
)

const (
	Source      = "pricecharting"
	defaultHost = "https://www.pricecharting.com"
	// maxProducts bounds how many catalogue matches feed one estimate.
	maxProducts = 10
)

type Config struct {
	Token string
}

// Connector queries the PriceCharting products API.
type Connector struct {
	token    string
	host     string
	http     scraper.Fetcher
	governor *ratelimit.Governor
	policy   scraper.EstimatePolicy
	timeout  time.Duration
	now      func() time.Time
	health   *scraper.HealthTracker
	logger   *utils.Logger
}

// New fails with ErrConfig without an API token.
func New(cfg Config, d scraper.Deps) (*Connector, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%s: %w: missing api token", Source, models.ErrConfig)
	}
	d = d.WithDefaults()
	return &Connector{
		token:    cfg.Token,
		host:     d.Host(defaultHost),
		http:     d.HTTP,
		governor: ratelimit.NewGovernor(ratelimit.NewPacer(d.MinGap), nil),
		policy: scraper.EstimatePolicy{
			PawnRate:       d.PawnRate,
			BaseConfidence: 0.4,
			ConfidenceStep: 0.03,
			MaxConfidence:  0.8,
			SampleSize:     d.SampleSize,
			Label:          "catalogue",
		},
		timeout: d.Timeout,
		now:     d.Now,
		health:  scraper.NewHealthTracker(Source, d.Now),
		logger:  d.Logger.With("source", Source),
	}, nil
}

func (c *Connector) Name() string { return Source }

func (c *Connector) Health() models.SourceHealth {
	return c.health.Snapshot(c.governor.QuotaRemaining())
}

type product struct {
	ID       string `json:"id"`
	Name     string `json:"product-name"`
	Console  string `json:"console-name"`
	Loose    int64  `json:"loose-price"`
	Complete int64  `json:"cib-price"`
	New      int64  `json:"new-price"`
}

type productsResponse struct {
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error-message"`
	Products     []product `json:"products"`
}

func (c *Connector) Estimate(ctx context.Context, query string) (est *models.PriceEstimate, err error) {
	defer func() { c.health.Record(err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%s: %w", Source, models.ErrInvalidQuery)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.governor.Acquire(ctx); err != nil {
		return nil, err
	}

	v := url.Values{}
	v.Set("t", c.token)
	v.Set("q", query)
	page, err := c.http.Fetch(ctx, scraper.Request{
		URL:     c.host + "/api/products?" + v.Encode(),
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, models.Transient(Source, err)
	}
	if !page.OK() {
		return nil, models.Transient(Source, fmt.Errorf("status %d", page.StatusCode))
	}

	var resp productsResponse
	if err := json.Unmarshal(page.Body, &resp); err != nil {
		return nil, models.Transient(Source, fmt.Errorf("decode response: %w", err))
	}
	if resp.Status != "success" {
		return nil, models.Transient(Source, fmt.Errorf("api status %q: %s", resp.Status, resp.ErrorMessage))
	}

	records := c.records(resp.Products)
	if len(records) == 0 {
		return nil, models.NoData(Source, "no catalogue prices")
	}

	est, err = scraper.BuildEstimate(Source, records, c.policy)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("[pricecharting] %q → $%.2f from %d price points", query, est.MarketValue, est.DataPoints)
	return est, nil
}

// records expands each product into one record per tracked condition.
// Prices arrive in cents.
func (c *Connector) records(products []product) []models.ListingRecord {
	if len(products) > maxProducts {
		products = products[:maxProducts]
	}
	observed := c.now()
	var out []models.ListingRecord
	for _, p := range products {
		title := strings.TrimSpace(p.Name + " " + p.Console)
		link := c.host + "/offers?product=" + url.QueryEscape(p.ID)
		for _, tier := range []struct {
			cents     int64
			condition models.Condition
		}{
			{p.Loose, models.ConditionFair},
			{p.Complete, models.ConditionGood},
			{p.New, models.ConditionExcellent},
		} {
			if tier.cents <= 0 {
				continue
			}
			out = append(out, models.ListingRecord{
				Title:      title,
				Price:      float64(tier.cents) / 100,
				Condition:  tier.condition,
				ObservedAt: observed,
				URL:        link,
				Source:     Source,
			})
		}
	}
	return out
}
