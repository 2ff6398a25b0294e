package guide

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pawn-estimator/cache"
	"pawn-estimator/models"
	"pawn-estimator/scraper"
	"pawn-estimator/utils"
)

const (
	metalsPawnRate   = 0.40
	metalsConfidence = 0.7
	gramsPerTroyOz   = 31.1034768
	dwtPerTroyOz     = 20.0
)

var (
	karatRegexp    = regexp.MustCompile(`\b(8|9|10|14|18|22|24)\s?(?:k|kt|karat|carat)\b`)
	finenessRegexp = regexp.MustCompile(`\b(999|9999|958|925|916|900|750|585|417|375)\b`)
	weightRegexp   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s?(grams?|gr?|dwt|ozt|troy\s?oz|oz|ounces?)\b`)
	coinSizeRegexp = regexp.MustCompile(`\b(?:(1/20|1/10|1/4|1/2)|(\d+(?:\.\d+)?))\s?(?:-\s?)?(?:ozt|troy\s?oz|oz|ounces?)\b`)
)

// SpotPrices are USD per troy ounce.
type SpotPrices struct {
	Gold     float64 `json:"gold"`
	Silver   float64 `json:"silver"`
	Platinum float64 `json:"platinum"`
}

func (s SpotPrices) price(metal string) float64 {
	switch metal {
	case "gold":
		return s.Gold
	case "silver":
		return s.Silver
	case "platinum":
		return s.Platinum
	}
	return 0
}

// SpotSource supplies current metal prices.
type SpotSource interface {
	Spot(ctx context.Context) (SpotPrices, error)
}

// HTTPSpotSource reads spot prices from a JSON endpoint and keeps them in the
// reference cache.
type HTTPSpotSource struct {
	url    string
	http   scraper.Fetcher
	store  *cache.Store
	ttl    time.Duration
	retry  *utils.RetryConfig
	logger *utils.Logger
}

func NewHTTPSpotSource(url string, fetcher scraper.Fetcher, store *cache.Store, ttl time.Duration, logger *utils.Logger) *HTTPSpotSource {
	return &HTTPSpotSource{
		url:    url,
		http:   fetcher,
		store:  store,
		ttl:    ttl,
		retry:  &utils.RetryConfig{MaxAttempts: 2, BaseDelay: 250 * time.Millisecond, Logger: logger},
		logger: logger,
	}
}

func (s *HTTPSpotSource) Spot(ctx context.Context) (SpotPrices, error) {
	key := cache.Key("guide.spot", "metals", "usd")
	if s.store != nil {
		if spot, ok := cache.Lookup[SpotPrices](s.store, key); ok {
			return spot, nil
		}
	}

	var spot SpotPrices
	err := s.retry.Do(ctx, "metals-spot", func(ctx context.Context) error {
		page, err := s.http.Fetch(ctx, scraper.Request{URL: s.url, Headers: map[string]string{"Accept": "application/json"}})
		if err != nil {
			return err
		}
		if !page.OK() {
			return fmt.Errorf("status %d", page.StatusCode)
		}
		spot, err = decodeSpot(page.Body)
		return err
	})
	if err != nil {
		return SpotPrices{}, models.Transient(Source, fmt.Errorf("spot prices: %w", err))
	}

	if s.store != nil {
		s.store.Set(key, spot, s.ttl)
	}
	return spot, nil
}

// decodeSpot accepts either metal names or ISO codes (XAU, XAG, XPT) as keys.
func decodeSpot(body []byte) (SpotPrices, error) {
	var raw map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return SpotPrices{}, fmt.Errorf("decode spot prices: %w", err)
	}
	var spot SpotPrices
	for k, v := range raw {
		f, err := v.Float64()
		if err != nil {
			continue
		}
		switch strings.ToLower(k) {
		case "gold", "xau":
			spot.Gold = f
		case "silver", "xag":
			spot.Silver = f
		case "platinum", "xpt":
			spot.Platinum = f
		}
	}
	if spot.Gold <= 0 && spot.Silver <= 0 && spot.Platinum <= 0 {
		return SpotPrices{}, errors.New("no metal prices in response")
	}
	return spot, nil
}

// coin is a bullion coin with its fine metal content in troy ounces.
type coin struct {
	names  []string
	metal  string
	fineOz float64
}

var coins = []coin{
	{[]string{"silver eagle"}, "silver", 1.0},
	{[]string{"morgan dollar", "morgan silver dollar"}, "silver", 0.7734},
	{[]string{"peace dollar"}, "silver", 0.7734},
	{[]string{"silver maple leaf", "silver maple"}, "silver", 1.0},
	{[]string{"gold eagle"}, "gold", 1.0},
	{[]string{"gold buffalo", "american buffalo"}, "gold", 1.0},
	{[]string{"krugerrand"}, "gold", 1.0},
	{[]string{"gold maple leaf", "maple leaf"}, "gold", 1.0},
	{[]string{"platinum eagle"}, "platinum", 1.0},
}

// metalItem is what the query says about a piece of metal.
type metalItem struct {
	metal  string
	fineOz float64
	desc   string
}

// parseMetal recognises coins first, then karat/fineness and weight.
func parseMetal(query string) (metalItem, bool) {
	q := strings.ToLower(query)

	for _, c := range coins {
		for _, name := range c.names {
			if strings.Contains(q, name) {
				size := coinSize(q)
				desc := name
				if size != 1 {
					desc = fmt.Sprintf("%g oz %s", size, name)
				}
				return metalItem{metal: c.metal, fineOz: c.fineOz * size, desc: desc}, true
			}
		}
	}

	metal := ""
	for _, m := range []string{"platinum", "silver", "gold"} {
		if strings.Contains(q, m) {
			metal = m
			break
		}
	}

	purity := 0.0
	if m := karatRegexp.FindStringSubmatch(q); m != nil {
		k, _ := strconv.Atoi(m[1])
		purity = float64(k) / 24
		if metal == "" {
			metal = "gold"
		}
	} else if m := finenessRegexp.FindStringSubmatch(q); m != nil {
		f, _ := strconv.ParseFloat(m[1], 64)
		purity = f / float64(pow10(len(m[1])))
	} else if strings.Contains(q, "sterling") {
		purity, metal = 0.925, "silver"
	} else if metal != "" && (strings.Contains(q, "bullion") || strings.Contains(q, "bar") || strings.Contains(q, "round")) {
		purity = 0.999
	}
	if metal == "" || purity == 0 {
		return metalItem{}, false
	}

	m := weightRegexp.FindStringSubmatch(q)
	if m == nil {
		return metalItem{}, false
	}
	weight, err := strconv.ParseFloat(m[1], 64)
	if err != nil || weight <= 0 {
		return metalItem{}, false
	}
	var troyOz float64
	switch unit := strings.ReplaceAll(m[2], " ", ""); {
	case strings.HasPrefix(unit, "g"):
		troyOz = weight / gramsPerTroyOz
	case unit == "dwt":
		troyOz = weight / dwtPerTroyOz
	default:
		troyOz = weight
	}

	return metalItem{
		metal:  metal,
		fineOz: troyOz * purity,
		desc:   fmt.Sprintf("%s %s at %.1f%% purity", strings.TrimSpace(m[0]), metal, purity*100),
	}, true
}

// coinSize is the ounce multiplier written before a bullion coin name:
// a fractional size like 1/10 oz or a count like 2 oz. It defaults to 1.
func coinSize(q string) float64 {
	m := coinSizeRegexp.FindStringSubmatch(q)
	if m == nil {
		return 1
	}
	switch m[1] {
	case "1/20":
		return 0.05
	case "1/10":
		return 0.1
	case "1/4":
		return 0.25
	case "1/2":
		return 0.5
	}
	n, err := strconv.ParseFloat(m[2], 64)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

func pow10(n int) int {
	p := 1
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

func metalsTier(spot SpotSource) func(context.Context, string) (*models.PriceEstimate, error) {
	return func(ctx context.Context, query string) (*models.PriceEstimate, error) {
		item, ok := parseMetal(query)
		if !ok {
			return nil, models.NoData(Source, "no metal content recognised")
		}
		if spot == nil {
			return nil, fmt.Errorf("%s: %w: no spot price source", Source, models.ErrConfig)
		}
		prices, err := spot.Spot(ctx)
		if err != nil {
			return nil, err
		}
		perOz := prices.price(item.metal)
		if perOz <= 0 {
			return nil, models.NoData(Source, "no spot price for "+item.metal)
		}

		melt := decimal.NewFromFloat(item.fineOz).Mul(decimal.NewFromFloat(perOz))
		value, _ := melt.Float64()
		note := fmt.Sprintf("Melt value of %s: %.4f ozt fine %s at $%.2f/ozt", item.desc, item.fineOz, item.metal, perOz)
		return ruleEstimate("metals", value, metalsPawnRate, metalsConfidence, note), nil
	}
}

func round2(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return v
}
