// Package mercari prices items from Mercari sold listings.
package mercari

import "pawn-estimator/scraper"

const (
	Source      = "mercari"
	defaultHost = "https://www.mercari.com"
)

var selectors = []scraper.SelectorSet{
	{
		Name:  "item-cell",
		Item:  `[data-testid="ItemContainer"], [data-testid="SearchResults"] a[data-testid="ProductThumbWrapper"]`,
		Title: `[data-testid="ItemName"], [data-testid="ProductThumbItemName"]`,
		Price: `[data-testid="ItemPrice"], [data-testid="ProductThumbItemPrice"]`,
		Image: "img",
	},
	{
		Name:      "thumb-alt",
		Item:      `a[href^="/item/"]`,
		Title:     "img",
		TitleAttr: "alt",
		Price:     `[class*="Price"], [class*="price"]`,
		Image:     "img",
	},
}

func New(d scraper.Deps) *scraper.WebConnector {
	host := d.Host(defaultHost)
	sold := func(q string) string {
		return host + "/search/?keyword=" + scraper.Escape(q) + "&itemStatuses=2&sortBy=2"
	}

	policy := scraper.DefaultEstimatePolicy()
	policy.Label = "sold"

	return scraper.NewWebConnector(scraper.WebConfig{
		Source: Source,
		Shapes: []scraper.Shape{
			{Name: "http", URL: sold, Identity: scraper.IdentityDesktop},
			{Name: "rendered", URL: sold, Identity: scraper.IdentityDesktop, Rendered: true},
		},
		Selectors:    selectors,
		TextFallback: true,
		Clean:        scraper.DefaultCleanPolicy(),
		Estimate:     policy,
	}, d)
}
