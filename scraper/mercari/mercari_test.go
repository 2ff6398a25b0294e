package mercari

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pawn-estimator/scraper"
	"pawn-estimator/utils"
)

func TestMercariSoldSearch(t *testing.T) {
	var status string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status = r.URL.Query().Get("itemStatuses")
		w.Write([]byte(`<html><body>
<div data-testid="ItemContainer"><p data-testid="ItemName">Coach Tabby 26</p><p data-testid="ItemPrice">$210</p></div>
<div data-testid="ItemContainer"><p data-testid="ItemName">Coach Tabby 26 Chalk</p><p data-testid="ItemPrice">$190</p></div>
</body></html>`))
	}))
	defer srv.Close()

	c := New(scraper.Deps{Logger: utils.NewDiscardLogger(), Timeout: 2 * time.Second, BaseURL: srv.URL})
	est, err := c.Estimate(context.Background(), "coach tabby")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if status != "2" {
		t.Errorf("expected sold-only filter, got itemStatuses=%q", status)
	}
	if c.Name() != Source || est.MarketValue != 200 || est.DataPoints != 2 {
		t.Errorf("estimate: %+v", est)
	}
}
