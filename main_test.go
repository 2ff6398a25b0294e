package main

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pawn-estimator/config"
	"pawn-estimator/metrics"
	"pawn-estimator/scraper/ebay"
	"pawn-estimator/scraper/mercari"
	"pawn-estimator/utils"
)

func TestBuildConnectorsCountsSkippedSources(t *testing.T) {
	cfg := config.Default()
	cfg.Sources = []string{"ebay", "mercari", "pricecharting", "etsy"}
	cfg.EbayAppID = ""
	cfg.PriceChartingToken = ""

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	connectors, delegate := buildConnectors(cfg, nil, collector, utils.NewDiscardLogger())

	if len(connectors) != 1 || connectors[0].Name() != mercari.Source {
		t.Fatalf("connectors: got %d, want only %s", len(connectors), mercari.Source)
	}
	if delegate == nil || delegate.Name() != ebay.SourceWeb {
		t.Errorf("delegate: got %v, want %s", delegate, ebay.SourceWeb)
	}

	expected := `
# HELP pawn_estimator_connector_requests_total Connector estimate calls by source and outcome.
# TYPE pawn_estimator_connector_requests_total counter
pawn_estimator_connector_requests_total{outcome="skipped",source="ebay"} 1
pawn_estimator_connector_requests_total{outcome="skipped",source="etsy"} 1
pawn_estimator_connector_requests_total{outcome="skipped",source="pricecharting"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "pawn_estimator_connector_requests_total"); err != nil {
		t.Error(err)
	}
}
