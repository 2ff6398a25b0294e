package scraper

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"pawn-estimator/models"
	"pawn-estimator/utils"
)

var (
	// priceRegexp captures the first numeric value of a price cell
	priceRegexp = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	// rangeRegexp matches "$20.00 to $35.00" style price ranges
	rangeRegexp = regexp.MustCompile(`(?i)\bto\b`)
)

// dateLayouts are the sold/listed date formats seen on marketplace pages.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"01/02/2006",
	"2 Jan 2006",
}

// CleanPolicy holds a connector's post-extraction filters.
type CleanPolicy struct {
	MinPrice float64
	// MaxPrice of zero means unbounded.
	MaxPrice float64
	// Placeholders are whole titles that mark non-listing tiles.
	Placeholders []string
	// TitlePrefixes are badge texts stripped from the start of a title.
	TitlePrefixes []string
	// Boilerplate phrases mark promotional tiles.
	Boilerplate []string
	// LinkRewrite, when set, rewrites every kept item URL (affiliate tagging).
	LinkRewrite func(string) string
}

// DefaultCleanPolicy applies to every scraping connector unless it overrides fields.
func DefaultCleanPolicy() CleanPolicy {
	return CleanPolicy{
		MinPrice:      5,
		TitlePrefixes: []string{"New Listing", "NEW LISTING", "Sponsored"},
		Boilerplate:   []string{"click here", "see details", "sponsored", "shop now", "results matching fewer words"},
	}
}

// Cleaner transforms RawListings into clean, validated ListingRecords.
type Cleaner struct {
	logger *utils.Logger
	policy CleanPolicy
	now    func() time.Time
}

// NewCleaner creates a Cleaner with the given logger and filters.
func NewCleaner(logger *utils.Logger, policy CleanPolicy) *Cleaner {
	return &Cleaner{logger: logger, policy: policy, now: time.Now}
}

// Clean processes raw listings and returns the records that pass the filters.
func (c *Cleaner) Clean(raw []models.RawListing) []models.ListingRecord {
	seen := utils.NewSet[string]()
	result := make([]models.ListingRecord, 0, len(raw))

	for _, r := range raw {
		title := c.cleanTitle(r.Title)
		if title == "" || c.isPlaceholder(title) || c.isBoilerplate(title) {
			c.logger.Debug("[cleaner] Dropping placeholder tile: %q", r.Title)
			continue
		}

		price := ParsePrice(r.RawPrice)
		if price < c.policy.MinPrice || (c.policy.MaxPrice > 0 && price > c.policy.MaxPrice) {
			c.logger.Debug("[cleaner] Dropping %q: price %.2f out of bounds", title, price)
			continue
		}

		url := strings.TrimSpace(r.URL)
		if url != "" && !seen.Add(url) {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", url)
			continue
		}

		if url != "" && c.policy.LinkRewrite != nil {
			url = c.policy.LinkRewrite(url)
		}

		condition := models.ParseCondition(r.RawCondition)
		if condition == models.ConditionUnknown {
			condition = models.ParseCondition(title)
		}

		result = append(result, models.ListingRecord{
			Title:      title,
			Price:      price,
			Condition:  condition,
			ObservedAt: c.parseDate(r.RawDate),
			ImageURL:   strings.TrimSpace(r.ImageURL),
			URL:        url,
			Source:     r.Source,
		})
	}

	c.logger.Debug("[cleaner] Cleaned %d → %d listings (dropped %d, %d distinct links)",
		len(raw), len(result), len(raw)-len(result), seen.Len())
	return result
}

func (c *Cleaner) cleanTitle(raw string) string {
	title := normaliseText(raw)
	for _, prefix := range c.policy.TitlePrefixes {
		if strings.HasPrefix(title, prefix) {
			title = strings.TrimSpace(strings.TrimPrefix(title, prefix))
		}
	}
	return title
}

func (c *Cleaner) isPlaceholder(title string) bool {
	for _, p := range c.policy.Placeholders {
		if strings.EqualFold(title, p) {
			return true
		}
	}
	return false
}

func (c *Cleaner) isBoilerplate(title string) bool {
	lower := strings.ToLower(title)
	for _, p := range c.policy.Boilerplate {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// parseDate falls back to the observation time when the page gives no usable date.
func (c *Cleaner) parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, prefix := range []string{"Sold", "Listed", "Ended"} {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, prefix))
	}
	if raw != "" {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return c.now()
}

// ParsePrice extracts a dollar amount from price text, rounded to cents.
// Ranges such as "$20.00 to $35.00" resolve to their lower bound.
// Examples:
//
//	"$1,299.99"          → 1299.99
//	"US $45.00"          → 45
//	"$20.00 to $35.00"   → 20
//	"Free"               → 0
func ParsePrice(raw string) float64 {
	if parts := rangeRegexp.Split(raw, 2); len(parts) == 2 {
		raw = parts[0]
	}
	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return 0
	}
	f, _ := d.Round(2).Float64()
	return f
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
