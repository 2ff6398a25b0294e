package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"pawn-estimator/models"
)

const (
	maxTextScanRecords = 60
	textScanMinPrice   = 0.01
	textScanMaxPrice   = 100_000
)

var (
	// digitRegexp decides whether a price cell holds a number at all.
	digitRegexp = regexp.MustCompile(`\d`)
	// currencyTokenRegexp finds "$1,234.56"-style tokens in free text.
	currencyTokenRegexp = regexp.MustCompile(`(?:US\s?)?\$\s?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?`)
)

// Extract parses a page with the first selector set that yields listings.
// When every set fails and textFallback is on, it scans leaf text nodes for
// currency tokens next to descriptive text. The second return value names
// the rule that matched.
func Extract(page *Page, sets []SelectorSet, textFallback bool, source string) ([]models.RawListing, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, "", fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(page.URL)

	found, idx, err := FirstSuccess(context.Background(), sets, func(_ context.Context, set SelectorSet) ([]models.RawListing, error) {
		return extractSet(doc, base, set, source), nil
	})
	if err == nil {
		return found, sets[idx].Name, nil
	}

	if textFallback {
		if found := scanText(doc, base, source); len(found) > 0 {
			return found, "text-scan", nil
		}
	}
	return nil, "", errors.New("no selector set matched")
}

func extractSet(doc *goquery.Document, base *url.URL, set SelectorSet, source string) []models.RawListing {
	var out []models.RawListing
	doc.Find(set.Item).Each(func(_ int, item *goquery.Selection) {
		title := fieldText(item, set.Title, set.TitleAttr)
		price := fieldText(item, set.Price, "")
		if title == "" || !digitRegexp.MatchString(price) {
			return
		}

		out = append(out, models.RawListing{
			Title:        title,
			RawPrice:     price,
			RawCondition: fieldText(item, set.Condition, ""),
			RawDate:      fieldText(item, set.Date, ""),
			ImageURL:     resolve(base, imageAttr(within(item, set.Image))),
			URL:          resolve(base, within(item, set.Link).AttrOr("href", "")),
			Source:       source,
		})
	})
	return out
}

// within narrows item to css; an empty css selects the item itself.
func within(item *goquery.Selection, css string) *goquery.Selection {
	if css == "" {
		return item
	}
	return item.Find(css).First()
}

func fieldText(item *goquery.Selection, css, attr string) string {
	if css == "" && attr == "" {
		return ""
	}
	sel := within(item, css)
	if attr != "" {
		return normaliseText(sel.AttrOr(attr, ""))
	}
	return normaliseText(sel.Text())
}

func imageAttr(sel *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v := strings.TrimSpace(sel.AttrOr(attr, "")); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// scanText is the structural fallback for pages where no selector set matches.
func scanText(doc *goquery.Document, base *url.URL, source string) []models.RawListing {
	var out []models.RawListing
	seen := make(map[string]struct{})

	doc.Find("body *").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(out) >= maxTextScanRecords {
			return false
		}
		if goquery.NodeName(sel) == "script" || goquery.NodeName(sel) == "style" || sel.Children().Length() > 0 {
			return true
		}

		text := normaliseText(sel.Text())
		token := currencyTokenRegexp.FindString(text)
		if token == "" {
			return true
		}
		price := ParsePrice(token)
		if price < textScanMinPrice || price > textScanMaxPrice {
			return true
		}

		desc := strings.TrimSpace(strings.Replace(text, token, "", 1))
		if countLetters(desc) < 3 {
			desc = strings.TrimSpace(strings.Replace(normaliseText(sel.Parent().Text()), token, "", 1))
		}
		if countLetters(desc) < 3 {
			return true
		}
		desc = truncate(desc, 200)

		key := strings.ToLower(desc) + "|" + token
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}

		link := sel.Closest("a")
		if link.Length() == 0 {
			link = sel.Parent().Find("a").First()
		}

		out = append(out, models.RawListing{
			Title:    desc,
			RawPrice: token,
			URL:      resolve(base, link.AttrOr("href", "")),
			Source:   source,
		})
		return true
	})
	return out
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
