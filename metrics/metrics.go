// Package metrics exposes Prometheus collectors for connectors, the result
// cache and the fallback chain. A nil *Collector records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pawn-estimator/models"
)

const namespace = "pawn_estimator"

// Collector groups every metric the engine records.
type Collector struct {
	connectorRequests *prometheus.CounterVec
	connectorLatency  *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	fallbackSteps     *prometheus.CounterVec
	quotaRemaining    *prometheus.GaugeVec
}

// NewCollector creates the collectors and registers them with reg.
// A nil registerer uses the default Prometheus registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		connectorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connector_requests_total",
			Help:      "Connector estimate calls by source and outcome.",
		}, []string{"source", "outcome"}),
		connectorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connector_latency_seconds",
			Help:      "Connector estimate latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		}, []string{"source"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by operation and result.",
		}, []string{"op", "result"}),
		fallbackSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_steps_total",
			Help:      "Primary fallback chain steps by step and outcome.",
		}, []string{"step", "outcome"}),
		quotaRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Calls left in the current quota window.",
		}, []string{"source"}),
	}

	reg.MustRegister(c.connectorRequests, c.connectorLatency, c.cacheLookups, c.fallbackSteps, c.quotaRemaining)
	return c
}

// ObserveConnector records one connector call.
func (c *Collector) ObserveConnector(source, outcome string, latency time.Duration) {
	if c == nil {
		return
	}
	c.connectorRequests.WithLabelValues(source, outcome).Inc()
	c.connectorLatency.WithLabelValues(source).Observe(latency.Seconds())
}

// ObserveSkipped counts a configured source that was left out at startup.
func (c *Collector) ObserveSkipped(source string) {
	if c == nil {
		return
	}
	c.connectorRequests.WithLabelValues(source, string(models.OutcomeSkipped)).Inc()
}

// ObserveCache records a cache hit or miss for op.
func (c *Collector) ObserveCache(op string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(op, result).Inc()
}

// ObserveFallback records one step of the primary fallback chain.
func (c *Collector) ObserveFallback(step, outcome string) {
	if c == nil {
		return
	}
	c.fallbackSteps.WithLabelValues(step, outcome).Inc()
}

// SetQuotaRemaining publishes a metered source's remaining budget.
func (c *Collector) SetQuotaRemaining(source string, remaining int) {
	if c == nil || remaining < 0 {
		return
	}
	c.quotaRemaining.WithLabelValues(source).Set(float64(remaining))
}
