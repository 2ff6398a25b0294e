package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pawn-estimator/models"
	"pawn-estimator/utils"
)

func newTestWebConnector(url string) *WebConnector {
	return NewWebConnector(WebConfig{
		Source:    "test",
		Shapes:    []Shape{{Name: "desktop", URL: fixedURL(url)}},
		Selectors: testSets,
		Clean:     DefaultCleanPolicy(),
		Estimate:  DefaultEstimatePolicy(),
	}, Deps{
		HTTP:    NewHTTPFetcher(2 * time.Second),
		Logger:  utils.NewDiscardLogger(),
		Timeout: 2 * time.Second,
	})
}

func TestWebConnectorEstimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsHTML))
	}))
	defer srv.Close()

	c := newTestWebConnector(srv.URL)
	est, err := c.Estimate(context.Background(), "  iphone 14 ")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Source != "test" || est.DataPoints != 2 || est.MarketValue != 450 || est.PawnValue != 135 {
		t.Errorf("estimate: %+v", est)
	}
	if err := est.Validate(); err != nil {
		t.Errorf("invariants: %v", err)
	}

	h := c.Health()
	if h.LastOutcome != models.OutcomeOK || h.LastSuccess.IsZero() || h.QuotaRemaining != -1 {
		t.Errorf("health: %+v", h)
	}
}

func TestWebConnectorAllFiltered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<ul><li class="s-card"><span class="s-card__title">Case</span><span class="s-card__price">$2.00</span></li></ul>`))
	}))
	defer srv.Close()

	c := newTestWebConnector(srv.URL)
	_, err := c.Estimate(context.Background(), "case")
	if !errors.Is(err, models.ErrNoData) {
		t.Errorf("err = %v; want ErrNoData", err)
	}
	if h := c.Health(); h.LastOutcome != models.OutcomeNoData || h.LastError == "" {
		t.Errorf("health: %+v", h)
	}
}

func TestWebConnectorRejectsBlankQuery(t *testing.T) {
	c := newTestWebConnector("http://unused")
	if _, err := c.Estimate(context.Background(), "   "); !errors.Is(err, models.ErrInvalidQuery) {
		t.Errorf("err = %v; want ErrInvalidQuery", err)
	}
}
