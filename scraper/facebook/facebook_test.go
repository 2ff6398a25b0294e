package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pawn-estimator/scraper"
	"pawn-estimator/utils"
)

func TestFacebookImageAltSelectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<a href="/marketplace/item/1/"><img alt="DeWalt 20V drill kit" src="a.jpg"><span>$80</span></a>
<a href="/marketplace/item/2/"><img alt="DeWalt drill with two batteries" src="b.jpg"><span>$100</span></a>
</body></html>`))
	}))
	defer srv.Close()

	c := New(scraper.Deps{Logger: utils.NewDiscardLogger(), Timeout: 2 * time.Second, BaseURL: srv.URL})
	est, err := c.Estimate(context.Background(), "dewalt drill")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Source != Source || est.MarketValue != 90 || est.DataPoints != 2 {
		t.Errorf("estimate: %+v", est)
	}
	if est.Confidence > 0.6 {
		t.Errorf("confidence %.2f above the local-marketplace cap", est.Confidence)
	}
}
