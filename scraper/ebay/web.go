package ebay

import (
	"pawn-estimator/scraper"
)

const webHost = "https://www.ebay.com"

// webSelectors covers three generations of the search results markup.
var webSelectors = []scraper.SelectorSet{
	{
		Name:      "s-card",
		Item:      "li.s-card",
		Title:     ".s-card__title",
		Price:     ".s-card__price",
		Link:      "a.su-link",
		Image:     "img.s-card__image",
		Condition: ".s-card__subtitle",
		Date:      ".s-card__caption",
	},
	{
		Name:      "s-item",
		Item:      "li.s-item",
		Title:     ".s-item__title",
		Price:     ".s-item__price",
		Link:      "a.s-item__link",
		Image:     ".s-item__image-img",
		Condition: ".SECONDARY_INFO",
		Date:      ".s-item__title--tagblock .POSITIVE",
	},
	{
		Name:  "lvresult",
		Item:  "li.sresult",
		Title: "h3.lvtitle",
		Price: "li.lvprice span",
		Link:  "h3.lvtitle a",
		Image: "img.img",
	},
}

// NewWeb builds the scraping variant over sold-listing search pages. Item
// links carry the same affiliate campaign as the API connector.
func NewWeb(campaignID string, d scraper.Deps) *scraper.WebConnector {
	host := d.Host(webHost)
	soldSearch := func(q string) string {
		return host + "/sch/i.html?_nkw=" + scraper.Escape(q) + "&LH_Sold=1&LH_Complete=1&_ipg=60"
	}
	mobileSearch := func(q string) string {
		return host + "/sch/i.html?_nkw=" + scraper.Escape(q) + "&LH_Sold=1&LH_Complete=1&_mwBanner=1"
	}

	policy := scraper.DefaultEstimatePolicy()
	policy.BaseConfidence = 0.45
	policy.MaxConfidence = 0.85
	policy.Label = "sold"

	clean := scraper.DefaultCleanPolicy()
	clean.Placeholders = []string{"Shop on eBay"}
	clean.LinkRewrite = func(link string) string { return AffiliateURL(link, campaignID) }

	return scraper.NewWebConnector(scraper.WebConfig{
		Source: SourceWeb,
		Shapes: []scraper.Shape{
			{Name: "desktop", URL: soldSearch, Identity: scraper.IdentityDesktop},
			{Name: "mobile", URL: mobileSearch, Identity: scraper.IdentityMobile,
				Headers: map[string]string{"Sec-Fetch-Mode": "navigate", "Sec-Fetch-Site": "none"}},
			{Name: "rendered", URL: soldSearch, Identity: scraper.IdentityDesktop, Rendered: true},
		},
		Selectors:    webSelectors,
		TextFallback: true,
		Clean:        clean,
		Estimate:     policy,
	}, d)
}
