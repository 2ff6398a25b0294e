package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pawn-estimator/models"
	"pawn-estimator/ratelimit"
	"pawn-estimator/utils"
)

// DefaultTimeout bounds a single connector call.
const DefaultTimeout = 12 * time.Second

// Connector is one marketplace's pricing capability. Implementations must be
// safe for concurrent use; the only state they carry is their governor.
type Connector interface {
	Name() string
	Estimate(ctx context.Context, query string) (*models.PriceEstimate, error)
	Health() models.SourceHealth
}

// Deps carries the shared collaborators every marketplace package is built from.
type Deps struct {
	HTTP    Fetcher
	Browser Fetcher
	Logger  *utils.Logger
	Timeout time.Duration
	// MinGap is the pacing gap between outbound calls of one connector.
	MinGap     time.Duration
	PawnRate   float64
	SampleSize int
	// BaseURL overrides the marketplace host, used by tests.
	BaseURL string
	Now     func() time.Time
}

// WithDefaults fills unset fields.
func (d Deps) WithDefaults() Deps {
	if d.Logger == nil {
		d.Logger = utils.NewLogger()
	}
	if d.HTTP == nil {
		d.HTTP = NewHTTPFetcher(DefaultTimeout)
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.PawnRate <= 0 {
		d.PawnRate = models.DefaultPawnRate
	}
	if d.SampleSize <= 0 {
		d.SampleSize = 5
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Host returns BaseURL when set, otherwise def.
func (d Deps) Host(def string) string {
	if d.BaseURL != "" {
		return strings.TrimRight(d.BaseURL, "/")
	}
	return def
}

// HealthTracker remembers the last outcome of a connector.
type HealthTracker struct {
	source string
	now    func() time.Time

	mu          sync.Mutex
	lastOutcome models.SourceOutcome
	lastError   string
	lastSuccess time.Time
}

func NewHealthTracker(source string, now func() time.Time) *HealthTracker {
	if now == nil {
		now = time.Now
	}
	return &HealthTracker{source: source, now: now}
}

// Record stores the outcome of one Estimate call.
func (h *HealthTracker) Record(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastOutcome = models.Classify(err)
	if err != nil {
		h.lastError = err.Error()
		return
	}
	h.lastError = ""
	h.lastSuccess = h.now()
}

func (h *HealthTracker) Snapshot(quotaRemaining int) models.SourceHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	return models.SourceHealth{
		Source:         h.source,
		LastOutcome:    h.lastOutcome,
		LastError:      h.lastError,
		LastSuccess:    h.lastSuccess,
		QuotaRemaining: quotaRemaining,
	}
}

// WebConfig declares a scraping connector: its shapes, selectors and policies.
type WebConfig struct {
	Source       string
	Shapes       []Shape
	Selectors    []SelectorSet
	TextFallback bool
	Clean        CleanPolicy
	Estimate     EstimatePolicy
}

// WebConnector binds a Strategy, a Cleaner and an estimate policy into a Connector.
type WebConnector struct {
	source   string
	strategy *Strategy
	cleaner  *Cleaner
	policy   EstimatePolicy
	timeout  time.Duration
	governor *ratelimit.Governor
	health   *HealthTracker
	logger   *utils.Logger
}

// NewWebConnector builds a scraping connector paced by d.MinGap.
func NewWebConnector(cfg WebConfig, d Deps) *WebConnector {
	d = d.WithDefaults()
	logger := d.Logger.With("source", cfg.Source)
	governor := ratelimit.NewGovernor(ratelimit.NewPacer(d.MinGap), nil)

	policy := cfg.Estimate
	policy.PawnRate = d.PawnRate
	if policy.SampleSize <= 0 {
		policy.SampleSize = d.SampleSize
	}

	cleaner := NewCleaner(logger, cfg.Clean)
	cleaner.now = d.Now

	return &WebConnector{
		source: cfg.Source,
		strategy: &Strategy{
			Source:       cfg.Source,
			Shapes:       cfg.Shapes,
			Selectors:    cfg.Selectors,
			TextFallback: cfg.TextFallback,
			HTTP:         d.HTTP,
			Browser:      d.Browser,
			Governor:     governor,
			Logger:       logger,
		},
		cleaner:  cleaner,
		policy:   policy,
		timeout:  d.Timeout,
		governor: governor,
		health:   NewHealthTracker(cfg.Source, d.Now),
		logger:   logger,
	}
}

func (c *WebConnector) Name() string { return c.source }

// Estimate collects, cleans and reduces listings for query.
func (c *WebConnector) Estimate(ctx context.Context, query string) (est *models.PriceEstimate, err error) {
	defer func() { c.health.Record(err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%s: %w", c.source, models.ErrInvalidQuery)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.strategy.Collect(ctx, query)
	if err != nil {
		return nil, err
	}

	records := c.cleaner.Clean(raw)
	if len(records) == 0 {
		return nil, models.NoData(c.source, fmt.Sprintf("all %d listings filtered out", len(raw)))
	}

	est, err = BuildEstimate(c.source, records, c.policy)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("[%s] %q → $%.2f from %d listings", c.source, query, est.MarketValue, est.DataPoints)
	return est, nil
}

func (c *WebConnector) Health() models.SourceHealth {
	return c.health.Snapshot(c.governor.QuotaRemaining())
}
