// Package offerup prices items from OfferUp search results.
package offerup

import "pawn-estimator/scraper"

const (
	Source      = "offerup"
	defaultHost = "https://offerup.com"
)

var selectors = []scraper.SelectorSet{
	{
		Name:  "item-tile",
		Item:  `a[href^="/item/detail/"]`,
		Title: `[class*="title"], span[class*="Title"]`,
		Price: `[class*="price"], span[class*="Price"]`,
		Image: "img",
	},
	{
		Name:      "aria-label",
		Item:      `a[href^="/item/detail/"][aria-label]`,
		TitleAttr: "aria-label",
		Price:     "span",
		Image:     "img",
	},
}

func New(d scraper.Deps) *scraper.WebConnector {
	host := d.Host(defaultHost)
	search := func(q string) string {
		return host + "/search?q=" + scraper.Escape(q)
	}

	policy := scraper.DefaultEstimatePolicy()
	policy.BaseConfidence = 0.3
	policy.MaxConfidence = 0.6

	return scraper.NewWebConnector(scraper.WebConfig{
		Source: Source,
		Shapes: []scraper.Shape{
			{Name: "http", URL: search, Identity: scraper.IdentityDesktop},
			{Name: "rendered", URL: search, Identity: scraper.IdentityMobile, Rendered: true},
		},
		Selectors:    selectors,
		TextFallback: true,
		Clean:        scraper.DefaultCleanPolicy(),
		Estimate:     policy,
	}, d)
}
