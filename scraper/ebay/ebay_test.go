package ebay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pawn-estimator/models"
	"pawn-estimator/scraper"
	"pawn-estimator/utils"
)

const findingJSON = `{"findCompletedItemsResponse":[{"ack":["Success"],"searchResult":[{"@count":"3","item":[
 {"title":["Apple iPhone 14 128GB Midnight"],"viewItemURL":["https://www.ebay.com/itm/1"],"galleryURL":["https://i.ebayimg.com/1.jpg"],
  "sellingStatus":[{"currentPrice":[{"@currencyId":"USD","__value__":"400.0"}],"sellingState":["EndedWithSales"]}],
  "condition":[{"conditionDisplayName":["Used"]}],"listingInfo":[{"endTime":["2026-02-03T18:21:04.000Z"]}]},
 {"title":["Apple iPhone 14 128GB Blue"],"viewItemURL":["https://www.ebay.com/itm/2"],
  "sellingStatus":[{"currentPrice":[{"@currencyId":"USD","__value__":"440.0"}],"sellingState":["EndedWithSales"]}]},
 {"title":["Apple iPhone 14 unsold"],"viewItemURL":["https://www.ebay.com/itm/3"],
  "sellingStatus":[{"currentPrice":[{"@currencyId":"USD","__value__":"999.0"}],"sellingState":["EndedWithoutSales"]}]}
]}]}]}`

func testDeps(host string) scraper.Deps {
	return scraper.Deps{
		HTTP:    scraper.NewHTTPFetcher(2 * time.Second),
		Logger:  utils.NewDiscardLogger(),
		Timeout: 2 * time.Second,
		MinGap:  time.Millisecond,
		BaseURL: host,
	}
}

func TestNewAPIRequiresAppID(t *testing.T) {
	_, err := NewAPI(APIConfig{}, testDeps(""))
	if !errors.Is(err, models.ErrConfig) {
		t.Errorf("err = %v; want ErrConfig", err)
	}
}

func TestAPIEstimate(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(findingJSON))
	}))
	defer srv.Close()

	api, err := NewAPI(APIConfig{AppID: "app-123", CampaignID: "5338"}, testDeps(srv.URL))
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}

	est, err := api.Estimate(context.Background(), "iPhone 14")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Source != SourceAPI || est.DataPoints != 2 || est.MarketValue != 420 || est.PawnValue != 126 {
		t.Errorf("estimate: %+v", est)
	}
	if est.Confidence != 0.54 {
		t.Errorf("confidence = %.2f; want 0.54", est.Confidence)
	}
	if gotQuery.Get("OPERATION-NAME") != "findCompletedItems" || gotQuery.Get("SECURITY-APPNAME") != "app-123" ||
		gotQuery.Get("keywords") != "iPhone 14" || gotQuery.Get("itemFilter(0).name") != "SoldItemsOnly" {
		t.Errorf("request query: %v", gotQuery)
	}
	for _, s := range est.Samples {
		if !strings.Contains(s.URL, "campid=5338") {
			t.Errorf("sample URL missing affiliate campaign: %s", s.URL)
		}
	}
	if h := api.Health(); h.QuotaRemaining != 4999 {
		t.Errorf("quota remaining = %d; want 4999", h.QuotaRemaining)
	}
}

func TestAPIAckFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"findCompletedItemsResponse":[{"ack":["Failure"],"errorMessage":[{"error":[{"message":["Invalid app id"]}]}]}]}`))
	}))
	defer srv.Close()

	api, _ := NewAPI(APIConfig{AppID: "bad"}, testDeps(srv.URL))
	_, err := api.Estimate(context.Background(), "iPhone 14")
	if !errors.Is(err, models.ErrTransient) || !strings.Contains(err.Error(), "Invalid app id") {
		t.Errorf("err = %v; want transient with the API message", err)
	}
}

func TestAPIEmptyResultIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"findCompletedItemsResponse":[{"ack":["Success"],"searchResult":[{"@count":"0"}]}]}`))
	}))
	defer srv.Close()

	api, _ := NewAPI(APIConfig{AppID: "app"}, testDeps(srv.URL))
	_, err := api.Estimate(context.Background(), "unobtainium")
	if !errors.Is(err, models.ErrNoData) {
		t.Errorf("err = %v; want ErrNoData", err)
	}
}

func TestAPIQuotaFailsFastAndResets(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(findingJSON))
	}))
	defer srv.Close()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	d := testDeps(srv.URL)
	d.Now = func() time.Time { return now }

	api, _ := NewAPI(APIConfig{AppID: "app", DailyQuota: 2, QuotaWindow: time.Hour}, d)
	for i := 0; i < 2; i++ {
		if _, err := api.Estimate(context.Background(), "iPhone 14"); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}

	_, err := api.Estimate(context.Background(), "iPhone 14")
	var qe *models.QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v; want *QuotaError", err)
	}
	if qe.MinutesUntilReset() != 60 {
		t.Errorf("minutes until reset = %d; want 60", qe.MinutesUntilReset())
	}
	if hits.Load() != 2 {
		t.Errorf("server hit %d times; want 2", hits.Load())
	}

	now = now.Add(time.Hour + time.Second)
	if _, err := api.Estimate(context.Background(), "iPhone 14"); err != nil {
		t.Errorf("after reset: %v", err)
	}
}

func TestAffiliateURL(t *testing.T) {
	if got := AffiliateURL("https://www.ebay.com/itm/1", ""); got != "https://www.ebay.com/itm/1" {
		t.Errorf("no campaign should leave the URL alone, got %s", got)
	}
	got := AffiliateURL("https://www.ebay.com/itm/1?hash=x", "42")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if u.Query().Get("campid") != "42" || u.Query().Get("hash") != "x" || u.Query().Get("mkevt") != "1" {
		t.Errorf("affiliate URL = %s", got)
	}
}

func TestWebEstimateDropsPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("LH_Sold") != "1" {
			t.Errorf("expected sold-only search, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(`<html><body><ul>
<li class="s-item"><a class="s-item__link" href="/itm/0"><span class="s-item__title">Shop on eBay</span></a><span class="s-item__price">$20.00</span></li>
<li class="s-item"><a class="s-item__link" href="/itm/1"><span class="s-item__title">Rolex Datejust 36</span></a><span class="s-item__price">$6,000.00</span></li>
<li class="s-item"><a class="s-item__link" href="/itm/2"><span class="s-item__title">Rolex Datejust 36mm</span></a><span class="s-item__price">$6,400.00</span></li>
</ul></body></html>`))
	}))
	defer srv.Close()

	web := NewWeb("77", testDeps(srv.URL))
	est, err := web.Estimate(context.Background(), "rolex datejust")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if web.Name() != SourceWeb || est.DataPoints != 2 || est.MarketValue != 6200 {
		t.Errorf("estimate: %+v", est)
	}
	if !strings.Contains(est.Samples[0].URL, "campid=77") {
		t.Errorf("sample URL missing campaign: %s", est.Samples[0].URL)
	}
}
