package scraper

import (
	"strings"
	"testing"
)

const resultsHTML = `<html><body>
<ul class="srp-results">
  <li class="s-card">
    <a class="s-card__link" href="/itm/111"><span class="s-card__title">Apple iPhone 14 128GB</span></a>
    <span class="s-card__price">$420.00</span>
    <img class="s-card__image" data-src="https://img.example/1.jpg">
    <span class="s-card__subtitle">Pre-Owned</span>
  </li>
  <li class="s-card">
    <a class="s-card__link" href="https://shop.example/itm/222"><span class="s-card__title">Apple iPhone 14 256GB</span></a>
    <span class="s-card__price">$480.00</span>
  </li>
  <li class="s-card">
    <span class="s-card__title">No price here</span>
  </li>
</ul>
</body></html>`

var testSets = []SelectorSet{
	{Name: "legacy", Item: "li.s-item", Title: ".s-item__title", Price: ".s-item__price", Link: "a.s-item__link"},
	{Name: "card", Item: "li.s-card", Title: ".s-card__title", Price: ".s-card__price", Link: "a.s-card__link", Image: "img", Condition: ".s-card__subtitle"},
}

func TestExtractFallsThroughSelectorSets(t *testing.T) {
	page := &Page{URL: "https://shop.example/sch?q=iphone", StatusCode: 200, Body: []byte(resultsHTML)}

	got, set, err := Extract(page, testSets, false, "test")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if set != "card" {
		t.Errorf("matched set %q; want card", set)
	}
	if len(got) != 2 {
		t.Fatalf("got %d listings; want 2 (item without price is skipped)", len(got))
	}
	first := got[0]
	if first.Title != "Apple iPhone 14 128GB" || first.RawPrice != "$420.00" {
		t.Errorf("first listing: %+v", first)
	}
	if first.URL != "https://shop.example/itm/111" {
		t.Errorf("relative link not resolved: %q", first.URL)
	}
	if first.ImageURL != "https://img.example/1.jpg" {
		t.Errorf("image = %q; want data-src", first.ImageURL)
	}
	if first.RawCondition != "Pre-Owned" || first.Source != "test" {
		t.Errorf("condition/source: %+v", first)
	}
}

func TestExtractTextScanFallback(t *testing.T) {
	html := `<html><body>
<div class="tile"><a href="/p/1"><span>Nintendo Switch OLED</span></a><span>$249.99</span></div>
<div class="tile"><span>Nintendo Switch OLED</span><span>$249.99</span></div>
<div><span>Mansion</span><span>$250,000</span></div>
<div><span>$5</span></div>
<script>var price = "$12.00 widget";</script>
</body></html>`
	page := &Page{URL: "https://shop.example/search", StatusCode: 200, Body: []byte(html)}

	got, set, err := Extract(page, testSets, true, "test")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if set != "text-scan" {
		t.Errorf("set = %q; want text-scan", set)
	}
	if len(got) != 1 {
		t.Fatalf("got %d listings; want 1 deduplicated in-range record: %+v", len(got), got)
	}
	if !strings.Contains(got[0].Title, "Nintendo Switch OLED") || got[0].RawPrice != "$249.99" {
		t.Errorf("listing: %+v", got[0])
	}
	if got[0].URL != "https://shop.example/p/1" {
		t.Errorf("URL = %q; want sibling link", got[0].URL)
	}
}

func TestExtractNoMatch(t *testing.T) {
	page := &Page{URL: "https://shop.example", StatusCode: 200, Body: []byte(`<html><body><p>Nothing</p></body></html>`)}
	if _, _, err := Extract(page, testSets, true, "test"); err == nil {
		t.Error("expected an error when nothing matches")
	}
}
