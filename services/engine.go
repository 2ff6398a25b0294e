package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"pawn-estimator/cache"
	"pawn-estimator/metrics"
	"pawn-estimator/models"
	"pawn-estimator/utils"
)

// Search modes, as stored on SearchRecord.Mode and used in cache keys.
const (
	ModeQuick         = "quick"
	ModeComprehensive = "comprehensive"
	ModeBreakdown     = "breakdown"
)

const (
	opQuick         = "engine.quick"
	opComprehensive = "engine.comprehensive"
)

// EngineConfig holds the engine's cache TTLs and input limits.
type EngineConfig struct {
	QuickTTL    time.Duration
	FullTTL     time.Duration
	MaxQueryLen int
}

// DefaultEngineConfig returns the default TTLs and query length limit.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{QuickTTL: 5 * time.Minute, FullTTL: 15 * time.Minute, MaxQueryLen: 200}
}

// Engine is the inbound surface: three estimate operations over a shared
// aggregator, each behind the result cache. Only a malformed query is
// returned as an error.
type Engine struct {
	agg     *Aggregator
	store   *cache.Store
	cfg     EngineConfig
	history *HistoryDispatcher
	metrics *metrics.Collector
	logger  *utils.Logger
	now     func() time.Time
}

// NewEngine wires the engine. history may be nil.
func NewEngine(agg *Aggregator, store *cache.Store, cfg EngineConfig, history *HistoryDispatcher, m *metrics.Collector, logger *utils.Logger) *Engine {
	def := DefaultEngineConfig()
	if cfg.QuickTTL <= 0 {
		cfg.QuickTTL = def.QuickTTL
	}
	if cfg.FullTTL <= 0 {
		cfg.FullTTL = def.FullTTL
	}
	if cfg.MaxQueryLen <= 0 {
		cfg.MaxQueryLen = def.MaxQueryLen
	}
	if store == nil {
		store = cache.New(nil)
	}
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &Engine{
		agg:     agg,
		store:   store,
		cfg:     cfg,
		history: history,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

type callerKey struct{}

// WithCaller attaches caller metadata that ends up in the search history.
func WithCaller(ctx context.Context, info models.CallerInfo) context.Context {
	return context.WithValue(ctx, callerKey{}, info)
}

// CallerFrom returns the caller metadata attached by WithCaller, if any.
func CallerFrom(ctx context.Context) models.CallerInfo {
	info, _ := ctx.Value(callerKey{}).(models.CallerInfo)
	return info
}

// EstimateQuick returns the blended estimate. Every call, including invalid
// queries and cache hits, is sent to the search history.
func (e *Engine) EstimateQuick(ctx context.Context, query string) (*models.PriceEstimate, error) {
	start := e.now()
	rec := &models.SearchRecord{
		ID:        uuid.NewString(),
		Query:     query,
		Mode:      ModeQuick,
		Caller:    CallerFrom(ctx),
		CreatedAt: start,
	}
	defer func() {
		rec.DurationMs = e.now().Sub(start).Milliseconds()
		e.history.Dispatch(rec)
	}()

	q, err := e.validate(query)
	if err != nil {
		rec.Error = err.Error()
		return nil, err
	}
	rec.Query = q

	key := cache.Key(opQuick, q, "")
	if est, ok := cache.Lookup[*models.PriceEstimate](e.store, key); ok {
		e.metrics.ObserveCache(opQuick, true)
		rec.CacheHit = true
		fillRecord(rec, est)
		return est, nil
	}
	e.metrics.ObserveCache(opQuick, false)

	bd := e.agg.Aggregate(ctx, q)
	est := bd.Blended
	e.store.Set(key, est, e.cfg.QuickTTL)

	rec.Sources = bd.Sources
	fillRecord(rec, est)
	return est, nil
}

// EstimateComprehensive returns the full aggregation without per-source statuses.
func (e *Engine) EstimateComprehensive(ctx context.Context, query string) (*models.AggregatedResult, error) {
	q, err := e.validate(query)
	if err != nil {
		return nil, err
	}

	key := cache.Key(opComprehensive, q, "")
	if res, ok := cache.Lookup[*models.AggregatedResult](e.store, key); ok {
		e.metrics.ObserveCache(opComprehensive, true)
		return res, nil
	}
	e.metrics.ObserveCache(opComprehensive, false)

	res := e.agg.Aggregate(ctx, q).AggregatedResult
	e.store.Set(key, res, e.cfg.FullTTL)
	return res, nil
}

// EstimateBreakdown is EstimateComprehensive plus the status of every source call.
func (e *Engine) EstimateBreakdown(ctx context.Context, query string) (*models.Breakdown, error) {
	q, err := e.validate(query)
	if err != nil {
		return nil, err
	}

	key := cache.Key(opComprehensive, q, ModeBreakdown)
	if bd, ok := cache.Lookup[*models.Breakdown](e.store, key); ok {
		e.metrics.ObserveCache(opComprehensive, true)
		return bd, nil
	}
	e.metrics.ObserveCache(opComprehensive, false)

	bd := e.agg.Aggregate(ctx, q)
	e.store.Set(key, bd, e.cfg.FullTTL)
	return bd, nil
}

// Health reports every connector, the guide included.
func (e *Engine) Health() []models.SourceHealth {
	connectors := e.agg.Connectors()
	out := make([]models.SourceHealth, 0, len(connectors))
	for _, c := range connectors {
		out = append(out, c.Health())
	}
	return out
}

func (e *Engine) validate(query string) (string, error) {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return "", fmt.Errorf("%w: empty query", models.ErrInvalidQuery)
	}
	if n := utf8.RuneCountInString(q); n > e.cfg.MaxQueryLen {
		return "", fmt.Errorf("%w: query is %d characters, limit is %d", models.ErrInvalidQuery, n, e.cfg.MaxQueryLen)
	}
	return q, nil
}

func fillRecord(rec *models.SearchRecord, est *models.PriceEstimate) {
	rec.MarketValue = est.MarketValue
	rec.PawnValue = est.PawnValue
	rec.Confidence = est.Confidence
	rec.DataPoints = est.DataPoints
}
