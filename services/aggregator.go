package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pawn-estimator/metrics"
	"pawn-estimator/models"
	"pawn-estimator/scraper"
	"pawn-estimator/utils"
)

// BlendedSource is the source name of the blended estimate.
const BlendedSource = "aggregated"

// Phases recorded on every SourceStatus.
const (
	PhaseFanOut          = "fan-out"
	PhaseAlternativeImpl = "alternative-implementation"
	PhaseAlternativeTerm = "alternative-term"
	PhaseGuide           = "guide"
)

const (
	alternativeTermPenalty = 0.8
	blendBaseConfidence    = 0.5
	blendConfidenceStep    = 0.01
	blendMaxConfidence     = 0.95
)

// DefaultReliability is the note attached to each corroborating source.
var DefaultReliability = map[string]string{
	"ebay":          "sold listings, authoritative marketplace data",
	"ebay-web":      "sold listings scraped from search results",
	"amazon":        "new retail pricing, usually above resale",
	"mercari":       "peer-to-peer sold listings",
	"facebook":      "local marketplace — prices vary by location",
	"offerup":       "local asking prices, not confirmed sales",
	"pricecharting": "collector price guide",
	"guide":         "rules-based estimate",
}

// AggregatorConfig controls primary selection and per-call limits.
type AggregatorConfig struct {
	// Primary lists source names in priority order. The first one registered
	// is the primary; the rest are its alternative implementations.
	Primary          []string
	ConnectorTimeout time.Duration
	Reliability      map[string]string
}

// Aggregator fans a query out to every connector and reduces the answers.
// It keeps no state between requests.
type Aggregator struct {
	connectors []scraper.Connector
	guide      scraper.Connector
	cfg        AggregatorConfig
	metrics    *metrics.Collector
	logger     *utils.Logger
	now        func() time.Time
}

// NewAggregator builds an aggregator over connectors, in registration order.
// guide is the last tier of the fallback chain and may be nil.
func NewAggregator(connectors []scraper.Connector, guide scraper.Connector, cfg AggregatorConfig, m *metrics.Collector, logger *utils.Logger) *Aggregator {
	if cfg.ConnectorTimeout <= 0 {
		cfg.ConnectorTimeout = scraper.DefaultTimeout
	}
	if cfg.Reliability == nil {
		cfg.Reliability = DefaultReliability
	}
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &Aggregator{
		connectors: connectors,
		guide:      guide,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Connectors returns the registered connectors followed by the guide.
func (a *Aggregator) Connectors() []scraper.Connector {
	out := append([]scraper.Connector(nil), a.connectors...)
	if a.guide != nil {
		out = append(out, a.guide)
	}
	return out
}

// call is the settled result of one connector invocation.
type call struct {
	est    *models.PriceEstimate
	err    error
	status models.SourceStatus
}

func (c call) ok() bool { return c.err == nil }

// Aggregate never fails: connector errors end up in the per-source statuses
// and, at worst, in a zero-confidence result with an explanatory note.
func (a *Aggregator) Aggregate(ctx context.Context, query string) *models.Breakdown {
	calls := a.fanOut(ctx, query)
	statuses := make([]models.SourceStatus, 0, len(calls))
	for _, c := range calls {
		statuses = append(statuses, c.status)
	}

	primary, primaryID, exclude, extra := a.resolvePrimary(ctx, query, calls)
	statuses = append(statuses, extra...)

	var rates []models.PossibleMarketRate
	var rateSources []string
	for i, c := range calls {
		name := a.connectors[i].Name()
		if exclude[name] || !c.ok() {
			continue
		}
		rates = append(rates, models.PossibleMarketRate{Estimate: c.est, Reliability: a.reliability(name)})
		rateSources = append(rateSources, name)
	}

	blended := blend(query, primary, rates)
	withData := len(rates)
	if primary.HasData() {
		withData++
	}

	result := &models.AggregatedResult{
		Query:               query,
		Primary:             primary,
		PossibleMarketRates: rates,
		Blended:             blended,
		Summary: models.Summary{
			PrimarySource:             primaryID,
			PossibleMarketRateSources: rateSources,
			SourcesWithData:           withData,
			Recommendation:            Recommendation(primary.Confidence, len(rates)),
		},
		Timestamp: a.now(),
	}

	a.logger.Info("[aggregator] %q → primary %s $%.2f (conf %.2f), %d corroborating, blended $%.2f",
		query, primaryID, primary.MarketValue, primary.Confidence, len(rates), blended.MarketValue)
	return &models.Breakdown{AggregatedResult: result, Sources: statuses}
}

// fanOut calls every connector concurrently and waits for all of them.
// Each call has its own timeout; one failing never cancels the others.
func (a *Aggregator) fanOut(ctx context.Context, query string) []call {
	calls := make([]call, len(a.connectors))
	var g errgroup.Group
	for i, c := range a.connectors {
		g.Go(func() error {
			calls[i] = a.invoke(ctx, c, query, PhaseFanOut)
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range a.connectors {
		if remaining := c.Health().QuotaRemaining; remaining >= 0 {
			a.metrics.SetQuotaRemaining(c.Name(), remaining)
		}
	}
	return calls
}

// invoke runs one connector call under the per-connector timeout and
// records its outcome. Estimates without data or breaking invariants are
// turned into errors so they never reach the blend.
func (a *Aggregator) invoke(ctx context.Context, c scraper.Connector, query, phase string) call {
	name := c.Name()
	cctx, cancel := context.WithTimeout(ctx, a.cfg.ConnectorTimeout)
	defer cancel()

	start := time.Now()
	est, err := c.Estimate(cctx, query)
	latency := time.Since(start)

	if err == nil {
		switch {
		case est == nil || !est.HasData():
			err = models.NoData(name, "estimate without data points")
		default:
			if verr := est.Validate(); verr != nil {
				err = models.Transient(name, verr)
			}
		}
	}

	outcome := models.Classify(err)
	if err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		outcome = models.OutcomeTimeout
	}

	status := models.SourceStatus{
		Source:    name,
		Phase:     phase,
		Query:     query,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
	}
	if err != nil {
		status.Error = err.Error()
		est = nil
		a.logger.Warn("[aggregator] %s (%s) failed for %q: %v", name, phase, query, err)
	} else {
		status.DataPoints = est.DataPoints
	}
	a.metrics.ObserveConnector(name, string(outcome), latency)
	return call{est: est, err: err, status: status}
}

// resolvePrimary designates the primary estimate and walks the fallback
// chain when it has no data: alternative implementation, alternative
// terms, then the guide. It returns the sources that must not appear as
// corroborators and the statuses of any extra calls.
func (a *Aggregator) resolvePrimary(ctx context.Context, query string, calls []call) (*models.PriceEstimate, string, map[string]bool, []models.SourceStatus) {
	ranked := a.ranked()
	exclude := map[string]bool{}
	if len(ranked) == 0 {
		est, id, statuses := a.fallbackGuide(ctx, query, "", "no connectors registered")
		exclude[id] = true
		return est, id, exclude, statuses
	}

	first := ranked[0]
	primaryID := a.connectors[first].Name()
	exclude[primaryID] = true
	if calls[first].ok() {
		return calls[first].est, primaryID, exclude, nil
	}

	// (a) alternative implementations already ran in the fan-out
	for _, i := range ranked[1:] {
		name := a.connectors[i].Name()
		a.metrics.ObserveFallback(PhaseAlternativeImpl, string(calls[i].status.Outcome))
		if calls[i].ok() {
			exclude[name] = true
			a.logger.Info("[aggregator] %s had no data; using %s", primaryID, name)
			return calls[i].est, name, exclude, nil
		}
	}

	// (b) alternative terms, one after another, against the primary
	var statuses []models.SourceStatus
	if target := a.termTarget(ranked, calls); target != nil {
		for _, term := range AlternativeTerms(query) {
			c := a.invoke(ctx, target, term, PhaseAlternativeTerm)
			statuses = append(statuses, c.status)
			a.metrics.ObserveFallback(PhaseAlternativeTerm, string(c.status.Outcome))
			if !c.ok() {
				continue
			}
			est := *c.est
			est.Confidence = roundConfidence(decimal.NewFromFloat(est.Confidence).Mul(decimal.NewFromFloat(alternativeTermPenalty)))
			est.AlternativeTerm = term
			est.Note = fmt.Sprintf("%s (matched alternative search term %q)", est.Note, term)
			exclude[target.Name()] = true
			return &est, target.Name(), exclude, statuses
		}
	}

	// (c) the rules-based guide
	reason := fmt.Sprintf("No pricing data found for %q from %d sources, alternative terms or the pricing guide",
		query, len(a.connectors))
	est, id, more := a.fallbackGuide(ctx, query, primaryID, reason)
	exclude[id] = true
	return est, id, exclude, append(statuses, more...)
}

func (a *Aggregator) fallbackGuide(ctx context.Context, query, primaryID, reason string) (*models.PriceEstimate, string, []models.SourceStatus) {
	if a.guide != nil {
		c := a.invoke(ctx, a.guide, query, PhaseGuide)
		a.metrics.ObserveFallback(PhaseGuide, string(c.status.Outcome))
		if c.ok() {
			return c.est, a.guide.Name(), []models.SourceStatus{c.status}
		}
		if primaryID == "" {
			primaryID = a.guide.Name()
		}
		return models.NoDataEstimate(primaryID, reason), primaryID, []models.SourceStatus{c.status}
	}
	return models.NoDataEstimate(primaryID, reason), primaryID, nil
}

// termTarget picks the connector alternative terms are retried against:
// the primary, unless it cannot take calls right now.
func (a *Aggregator) termTarget(ranked []int, calls []call) scraper.Connector {
	for _, i := range ranked {
		switch calls[i].status.Outcome {
		case models.OutcomeQuota, models.OutcomeConfig:
			continue
		}
		return a.connectors[i]
	}
	return nil
}

// ranked returns connector indexes in primary priority order. With no
// configured priority registered, the first connector is the primary.
func (a *Aggregator) ranked() []int {
	index := make(map[string]int, len(a.connectors))
	for i, c := range a.connectors {
		index[c.Name()] = i
	}
	var out []int
	for _, name := range a.cfg.Primary {
		if i, ok := index[name]; ok {
			out = append(out, i)
		}
	}
	if len(out) == 0 && len(a.connectors) > 0 {
		out = []int{0}
	}
	return out
}

func (a *Aggregator) reliability(source string) string {
	if r, ok := a.cfg.Reliability[source]; ok {
		return r
	}
	return "unrated source"
}

// blend is the plain mean of market and pawn values over the primary and
// every corroborating estimate with data. Confidence grows with the total
// number of data points.
func blend(query string, primary *models.PriceEstimate, rates []models.PossibleMarketRate) *models.PriceEstimate {
	var contributing []*models.PriceEstimate
	if primary.HasData() {
		contributing = append(contributing, primary)
	}
	for _, r := range rates {
		if r.Estimate.HasData() {
			contributing = append(contributing, r.Estimate)
		}
	}
	if len(contributing) == 0 {
		note := fmt.Sprintf("No source returned usable pricing data for %q", query)
		if primary != nil && primary.Note != "" {
			note = primary.Note
		}
		return models.NoDataEstimate(BlendedSource, note)
	}

	market, pawn := decimal.Zero, decimal.Zero
	dataPoints := 0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, e := range contributing {
		market = market.Add(decimal.NewFromFloat(e.MarketValue))
		pawn = pawn.Add(decimal.NewFromFloat(e.PawnValue))
		dataPoints += e.DataPoints
		lo = math.Min(lo, e.PriceRange.Min)
		hi = math.Max(hi, e.PriceRange.Max)
	}
	n := decimal.NewFromInt(int64(len(contributing)))
	marketValue := roundMoney(market.Div(n))
	pawnValue := math.Min(roundMoney(pawn.Div(n)), marketValue)

	confidence := math.Min(blendMaxConfidence,
		roundMoney(decimal.NewFromFloat(blendBaseConfidence).Add(decimal.NewFromFloat(blendConfidenceStep).Mul(decimal.NewFromInt(int64(dataPoints))))))

	est := &models.PriceEstimate{
		Source:      BlendedSource,
		MarketValue: marketValue,
		PawnValue:   pawnValue,
		Confidence:  confidence,
		DataPoints:  dataPoints,
		PriceRange:  models.PriceRange{Min: lo, Max: hi},
		Note:        fmt.Sprintf("Blended from %d sources (%d data points)", len(contributing), dataPoints),
	}
	if primary.HasData() {
		est.Category = primary.Category
		est.AlternativeTerm = primary.AlternativeTerm
		est.Samples = primary.Samples
	}
	return est
}

func roundMoney(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// roundConfidence keeps one more place than money so a penalised
// confidence like 0.73 * 0.8 stays 0.584.
func roundConfidence(d decimal.Decimal) float64 {
	f, _ := d.Round(3).Float64()
	return f
}
