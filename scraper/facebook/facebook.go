// Package facebook prices items from Facebook Marketplace search.
package facebook

import "pawn-estimator/scraper"

const (
	Source      = "facebook"
	defaultHost = "https://www.facebook.com"
)

// Marketplace tiles carry no stable class names, only link structure.
var selectors = []scraper.SelectorSet{
	{
		Name:  "item-link",
		Item:  `a[href*="/marketplace/item/"]`,
		Title: `span[style*="-webkit-line-clamp"]`,
		Price: `span[dir="auto"]`,
		Image: "img",
	},
	{
		Name:      "img-alt",
		Item:      `a[href*="/marketplace/item/"]`,
		Title:     "img",
		TitleAttr: "alt",
		Price:     "span",
		Image:     "img",
	},
}

func New(d scraper.Deps) *scraper.WebConnector {
	host := d.Host(defaultHost)
	search := func(q string) string {
		return host + "/marketplace/search/?query=" + scraper.Escape(q) + "&exact=false"
	}

	policy := scraper.DefaultEstimatePolicy()
	policy.BaseConfidence = 0.3
	policy.MaxConfidence = 0.6

	clean := scraper.DefaultCleanPolicy()
	clean.Boilerplate = append(clean.Boilerplate, "log in", "create new account")

	return scraper.NewWebConnector(scraper.WebConfig{
		Source: Source,
		Shapes: []scraper.Shape{
			{Name: "mobile", URL: search, Identity: scraper.IdentityMobile},
			{Name: "rendered", URL: search, Identity: scraper.IdentityDesktop, Rendered: true},
		},
		Selectors:    selectors,
		TextFallback: true,
		Clean:        clean,
		Estimate:     policy,
	}, d)
}
