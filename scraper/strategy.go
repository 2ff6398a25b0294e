package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"pawn-estimator/models"
	"pawn-estimator/ratelimit"
	"pawn-estimator/utils"
)

// Shape is one way of asking a marketplace for its search results: the URL
// form, the headers and the client identity presented.
type Shape struct {
	Name string
	// URL builds the target address for a query. The query is not escaped.
	URL     func(query string) string
	Headers map[string]string
	// Identity picks a rotating user agent (desktop or mobile) when UserAgent is empty.
	Identity  string
	UserAgent string
	// Rendered shapes load the page in a headless browser.
	Rendered bool
}

// SelectorSet is one generation of field-extraction rules for a result page.
// Title, Price, Link and Image are relative to Item; an empty Link uses the
// item element itself.
type SelectorSet struct {
	Name      string
	Item      string
	Title     string
	TitleAttr string
	Price     string
	Link      string
	Image     string
	Condition string
	Date      string
}

// Strategy tries request shapes in order, and within each response tries
// selector sets in order, stopping at the first that yields listings.
type Strategy struct {
	Source       string
	Shapes       []Shape
	Selectors    []SelectorSet
	TextFallback bool
	HTTP         Fetcher
	Browser      Fetcher
	Governor     *ratelimit.Governor
	Logger       *utils.Logger
}

// Collect returns the raw listings of the first successful shape. When every
// shape fails the error is ErrNoData if any response was 2xx, ErrTransient otherwise.
func (s *Strategy) Collect(ctx context.Context, query string) ([]models.RawListing, error) {
	shapes := s.usableShapes()
	if len(shapes) == 0 {
		return nil, fmt.Errorf("%s: %w: no usable request shapes", s.Source, models.ErrConfig)
	}

	answered := false
	listings, idx, err := FirstSuccess(ctx, shapes, func(ctx context.Context, sh Shape) ([]models.RawListing, error) {
		if err := s.Governor.Acquire(ctx); err != nil {
			if errors.Is(err, models.ErrQuotaExceeded) {
				return nil, Stop(err)
			}
			return nil, err
		}

		page, err := s.fetch(ctx, sh, query)
		if err != nil {
			s.Logger.Debug("[%s] shape %s: fetch failed: %v", s.Source, sh.Name, err)
			return nil, fmt.Errorf("shape %s: %w", sh.Name, err)
		}
		if !page.OK() {
			s.Logger.Debug("[%s] shape %s: status %d", s.Source, sh.Name, page.StatusCode)
			return nil, fmt.Errorf("shape %s: status %d", sh.Name, page.StatusCode)
		}
		answered = true

		found, set, err := Extract(page, s.Selectors, s.TextFallback, s.Source)
		if err != nil {
			return nil, fmt.Errorf("shape %s: %w", sh.Name, err)
		}
		s.Logger.Debug("[%s] shape %s: %d listings via %s", s.Source, sh.Name, len(found), set)
		return found, nil
	})

	if err == nil {
		s.Logger.Debug("[%s] shape %d/%d (%s) won", s.Source, idx+1, len(shapes), shapes[idx].Name)
		return listings, nil
	}
	if errors.Is(err, models.ErrQuotaExceeded) {
		return nil, err
	}
	if answered {
		return nil, models.NoData(s.Source, "no listings in any response")
	}
	return nil, models.Transient(s.Source, err)
}

func (s *Strategy) usableShapes() []Shape {
	shapes := make([]Shape, 0, len(s.Shapes))
	for _, sh := range s.Shapes {
		if sh.Rendered && s.Browser == nil {
			continue
		}
		shapes = append(shapes, sh)
	}
	return shapes
}

func (s *Strategy) fetch(ctx context.Context, sh Shape, query string) (*Page, error) {
	ua := sh.UserAgent
	if ua == "" {
		ua = RandomUserAgent(sh.Identity)
	}
	req := Request{URL: sh.URL(query), Headers: sh.Headers, UserAgent: ua}
	if sh.Rendered {
		return s.Browser.Fetch(ctx, req)
	}
	return s.HTTP.Fetch(ctx, req)
}

// Escape is the query escaping used in search URLs.
func Escape(query string) string {
	return url.QueryEscape(query)
}
