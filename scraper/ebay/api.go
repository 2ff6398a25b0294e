package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pawn-estimator/models"
	"pawn-estimator/ratelimit"
	"pawn-estimator/scraper"
	"pawn-estimator/utils"
)

const (
	// SourceAPI is the authoritative sold-listings connector.
	SourceAPI = "ebay"
	// SourceWeb is the scraping variant used when the API yields nothing.
	SourceWeb = "ebay-web"

	findingHost    = "https://svcs.ebay.com"
	findingPath    = "/services/search/FindingService/v1"
	entriesPerPage = 50
)

// APIConfig holds the Finding API credentials and call budget.
type APIConfig struct {
	AppID      string
	CampaignID string
	// DailyQuota is the contractual call limit per QuotaWindow.
	DailyQuota  int
	QuotaWindow time.Duration
}

// API queries the Finding API for completed, sold items.
type API struct {
	cfg      APIConfig
	host     string
	http     scraper.Fetcher
	governor *ratelimit.Governor
	policy   scraper.EstimatePolicy
	cleaner  *scraper.Cleaner
	timeout  time.Duration
	health   *scraper.HealthTracker
	logger   *utils.Logger
}

// NewAPI fails with ErrConfig when no app id is configured, so the caller can
// leave the connector out of the fan-out.
func NewAPI(cfg APIConfig, d scraper.Deps) (*API, error) {
	if strings.TrimSpace(cfg.AppID) == "" {
		return nil, fmt.Errorf("%s: %w: missing app id", SourceAPI, models.ErrConfig)
	}
	d = d.WithDefaults()
	if cfg.DailyQuota <= 0 {
		cfg.DailyQuota = 5000
	}
	if cfg.QuotaWindow <= 0 {
		cfg.QuotaWindow = 24 * time.Hour
	}
	gap := d.MinGap
	if gap <= 0 {
		gap = 100 * time.Millisecond
	}

	logger := d.Logger.With("source", SourceAPI)
	return &API{
		cfg:  cfg,
		host: d.Host(findingHost),
		http: d.HTTP,
		governor: ratelimit.NewGovernor(
			ratelimit.NewPacer(gap),
			ratelimit.NewQuota(SourceAPI, cfg.DailyQuota, cfg.QuotaWindow, d.Now),
		),
		policy: scraper.EstimatePolicy{
			PawnRate:       d.PawnRate,
			BaseConfidence: 0.5,
			ConfidenceStep: 0.02,
			MaxConfidence:  0.9,
			SampleSize:     d.SampleSize,
			Label:          "sold",
		},
		cleaner: scraper.NewCleaner(logger, scraper.CleanPolicy{MinPrice: 5}),
		timeout: d.Timeout,
		health:  scraper.NewHealthTracker(SourceAPI, d.Now),
		logger:  logger,
	}, nil
}

func (a *API) Name() string { return SourceAPI }

func (a *API) Health() models.SourceHealth {
	return a.health.Snapshot(a.governor.QuotaRemaining())
}

// Estimate prices query from the last sold listings.
func (a *API) Estimate(ctx context.Context, query string) (est *models.PriceEstimate, err error) {
	defer func() { a.health.Record(err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%s: %w", SourceAPI, models.ErrInvalidQuery)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.governor.Acquire(ctx); err != nil {
		return nil, err
	}

	page, err := a.http.Fetch(ctx, scraper.Request{
		URL:       a.searchURL(query),
		Headers:   map[string]string{"Accept": "application/json"},
		UserAgent: "pawn-estimator/1.0",
	})
	if err != nil {
		return nil, models.Transient(SourceAPI, err)
	}
	if !page.OK() {
		return nil, models.Transient(SourceAPI, fmt.Errorf("status %d", page.StatusCode))
	}

	raw, err := a.parse(page.Body)
	if err != nil {
		return nil, err
	}
	records := a.cleaner.Clean(raw)
	if len(records) == 0 {
		return nil, models.NoData(SourceAPI, "no sold items")
	}

	est, err = scraper.BuildEstimate(SourceAPI, records, a.policy)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("[ebay] %q → $%.2f from %d sold items (quota left %d)",
		query, est.MarketValue, est.DataPoints, a.governor.QuotaRemaining())
	return est, nil
}

func (a *API) searchURL(query string) string {
	v := url.Values{}
	v.Set("OPERATION-NAME", "findCompletedItems")
	v.Set("SERVICE-VERSION", "1.13.0")
	v.Set("SECURITY-APPNAME", a.cfg.AppID)
	v.Set("RESPONSE-DATA-FORMAT", "JSON")
	v.Set("REST-PAYLOAD", "")
	v.Set("keywords", query)
	v.Set("itemFilter(0).name", "SoldItemsOnly")
	v.Set("itemFilter(0).value", "true")
	v.Set("sortOrder", "EndTimeSoonest")
	v.Set("paginationInput.entriesPerPage", strconv.Itoa(entriesPerPage))
	if a.cfg.CampaignID != "" {
		v.Set("affiliate.networkId", "9")
		v.Set("affiliate.trackingId", a.cfg.CampaignID)
	}
	return a.host + findingPath + "?" + v.Encode()
}

// The Finding API wraps every scalar in a single-element array.
type findingResponse struct {
	Response []struct {
		Ack          []string `json:"ack"`
		ErrorMessage []struct {
			Error []struct {
				Message []string `json:"message"`
			} `json:"error"`
		} `json:"errorMessage"`
		SearchResult []struct {
			Count string        `json:"@count"`
			Item  []findingItem `json:"item"`
		} `json:"searchResult"`
	} `json:"findCompletedItemsResponse"`
}

type findingItem struct {
	Title         []string `json:"title"`
	ViewItemURL   []string `json:"viewItemURL"`
	GalleryURL    []string `json:"galleryURL"`
	SellingStatus []struct {
		CurrentPrice []struct {
			Currency string `json:"@currencyId"`
			Value    string `json:"__value__"`
		} `json:"currentPrice"`
		SellingState []string `json:"sellingState"`
	} `json:"sellingStatus"`
	Condition []struct {
		DisplayName []string `json:"conditionDisplayName"`
	} `json:"condition"`
	ListingInfo []struct {
		EndTime []string `json:"endTime"`
	} `json:"listingInfo"`
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (a *API) parse(body []byte) ([]models.RawListing, error) {
	var resp findingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, models.Transient(SourceAPI, fmt.Errorf("decode response: %w", err))
	}
	if len(resp.Response) == 0 {
		return nil, models.Transient(SourceAPI, fmt.Errorf("empty response envelope"))
	}
	r := resp.Response[0]
	if ack := first(r.Ack); ack != "Success" && ack != "Warning" {
		msg := ack
		if len(r.ErrorMessage) > 0 && len(r.ErrorMessage[0].Error) > 0 {
			msg = first(r.ErrorMessage[0].Error[0].Message)
		}
		return nil, models.Transient(SourceAPI, fmt.Errorf("ack %s: %s", ack, msg))
	}
	if len(r.SearchResult) == 0 || len(r.SearchResult[0].Item) == 0 {
		return nil, models.NoData(SourceAPI, "no sold items")
	}

	out := make([]models.RawListing, 0, len(r.SearchResult[0].Item))
	for _, it := range r.SearchResult[0].Item {
		var price, condition, ended string
		if len(it.SellingStatus) > 0 {
			if state := first(it.SellingStatus[0].SellingState); state != "" && state != "EndedWithSales" {
				continue
			}
			if len(it.SellingStatus[0].CurrentPrice) > 0 {
				p := it.SellingStatus[0].CurrentPrice[0]
				if p.Currency != "" && p.Currency != "USD" {
					continue
				}
				price = p.Value
			}
		}
		if len(it.Condition) > 0 {
			condition = first(it.Condition[0].DisplayName)
		}
		if len(it.ListingInfo) > 0 {
			ended = first(it.ListingInfo[0].EndTime)
		}
		out = append(out, models.RawListing{
			Title:        first(it.Title),
			RawPrice:     price,
			RawCondition: condition,
			RawDate:      ended,
			ImageURL:     first(it.GalleryURL),
			URL:          AffiliateURL(first(it.ViewItemURL), a.cfg.CampaignID),
			Source:       SourceAPI,
		})
	}
	return out, nil
}

// AffiliateURL appends Partner Network tracking parameters to an item URL.
func AffiliateURL(itemURL, campaignID string) string {
	if itemURL == "" || campaignID == "" {
		return itemURL
	}
	u, err := url.Parse(itemURL)
	if err != nil {
		return itemURL
	}
	q := u.Query()
	q.Set("mkcid", "1")
	q.Set("mkrid", "711-53200-19255-0")
	q.Set("siteid", "0")
	q.Set("campid", campaignID)
	q.Set("toolid", "10001")
	q.Set("mkevt", "1")
	u.RawQuery = q.Encode()
	return u.String()
}
