// Package amazon prices items from Amazon search results.
package amazon

import (
	"strings"

	"pawn-estimator/scraper"
)

const (
	Source      = "amazon"
	defaultHost = "https://www.amazon.com"
)

var selectors = []scraper.SelectorSet{
	{
		Name:  "search-result",
		Item:  `div[data-component-type="s-search-result"]`,
		Title: "h2 span",
		Price: "span.a-price span.a-offscreen",
		Link:  "h2 a, a.a-link-normal.s-no-outline",
		Image: "img.s-image",
	},
	{
		Name:      "asin-grid",
		Item:      "div[data-asin]:not([data-asin=''])",
		Title:     "img.s-image",
		TitleAttr: "alt",
		Price:     ".a-price .a-offscreen, .a-color-price",
		Link:      "a.a-link-normal",
		Image:     "img.s-image",
	},
}

// Config carries the Associates tag appended to item links.
type Config struct {
	AssociateTag string
}

// New builds the Amazon connector. Amazon lists new retail prices, so the
// confidence cap sits below the sold-listing sources.
func New(cfg Config, d scraper.Deps) *scraper.WebConnector {
	host := d.Host(defaultHost)
	search := func(path string) func(string) string {
		return func(q string) string {
			u := host + path + "?k=" + scraper.Escape(q)
			if cfg.AssociateTag != "" {
				u += "&tag=" + scraper.Escape(cfg.AssociateTag)
			}
			return u
		}
	}

	policy := scraper.DefaultEstimatePolicy()
	policy.MaxConfidence = 0.7
	policy.Label = "retail"

	clean := scraper.DefaultCleanPolicy()
	clean.Boilerplate = append(clean.Boilerplate, "check each product page")
	clean.LinkRewrite = func(link string) string { return TagURL(link, cfg.AssociateTag) }

	return scraper.NewWebConnector(scraper.WebConfig{
		Source: Source,
		Shapes: []scraper.Shape{
			{Name: "desktop", URL: search("/s"), Identity: scraper.IdentityDesktop},
			{Name: "mobile", URL: search("/s"), Identity: scraper.IdentityMobile,
				Headers: map[string]string{"Accept-Language": "en-US,en;q=0.8", "Device-Memory": "4"}},
		},
		Selectors:    selectors,
		TextFallback: false,
		Clean:        clean,
		Estimate:     policy,
	}, d)
}

// TagURL appends the associate tag to an Amazon product link.
func TagURL(link, tag string) string {
	if tag == "" || link == "" || strings.Contains(link, "tag=") {
		return link
	}
	sep := "?"
	if strings.Contains(link, "?") {
		sep = "&"
	}
	return link + sep + "tag=" + scraper.Escape(tag)
}
