package services

import (
	"fmt"
	"io"
	"strings"

	"pawn-estimator/models"
)

// Report prints estimates as a coloured terminal report.
type Report struct {
	w io.Writer
}

func NewReport(w io.Writer) *Report {
	return &Report{w: w}
}

func (r *Report) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *Report) header(title string) {
	sep := strings.Repeat("═", 54)
	r.printf("\n\033[1;35m%s\033[0m\n", sep)
	r.printf("\033[1;35m  💰 %s\033[0m\n", title)
	r.printf("\033[1;35m%s\033[0m\n\n", sep)
}

func (r *Report) footer() {
	r.printf("\n\033[1;35m%s\033[0m\n\n", strings.Repeat("═", 54))
}

func (r *Report) section(title string) {
	r.printf("\033[1;33m  %s\033[0m\n", title)
	r.printf("  %s\n", strings.Repeat("─", 54))
}

// PrintQuick prints the blended estimate of a quick lookup.
func (r *Report) PrintQuick(query string, est *models.PriceEstimate) {
	r.header("PAWN ESTIMATE: " + strings.ToUpper(truncate(query, 36)))
	r.section("Estimate")
	r.estimate(est)
	r.footer()
}

// PrintResult prints a full aggregation.
func (r *Report) PrintResult(res *models.AggregatedResult) {
	r.header("MARKET REPORT: " + strings.ToUpper(truncate(res.Query, 36)))
	r.result(res)
	r.footer()
}

// PrintBreakdown prints a full aggregation followed by every source call.
func (r *Report) PrintBreakdown(bd *models.Breakdown) {
	r.header("SOURCE BREAKDOWN: " + strings.ToUpper(truncate(bd.Query, 33)))
	r.result(bd.AggregatedResult)

	r.section("Source Calls")
	if len(bd.Sources) == 0 {
		r.printf("  No sources were called\n")
	}
	for _, s := range bd.Sources {
		colour := "\033[1;32m"
		if s.Outcome != models.OutcomeOK {
			colour = "\033[1;31m"
		}
		query := ""
		if s.Phase != PhaseFanOut {
			query = fmt.Sprintf(" %q", truncate(s.Query, 24))
		}
		r.printf("  %-14s %-18s %s%-14s\033[0m %6dms %3d pts%s\n",
			s.Source, s.Phase, colour, s.Outcome, s.LatencyMs, s.DataPoints, query)
	}
	r.footer()
}

// PrintHistory lists past searches, newest first.
func (r *Report) PrintHistory(records []*models.SearchRecord) {
	r.header("RECENT SEARCHES")
	if len(records) == 0 {
		r.printf("  No searches recorded\n")
	}
	for i, rec := range records {
		status := fmt.Sprintf("\033[1;32m$%.2f\033[0m", rec.MarketValue)
		if rec.Error != "" {
			status = "\033[1;31m" + truncate(rec.Error, 30) + "\033[0m"
		}
		hit := ""
		if rec.CacheHit {
			hit = " (cached)"
		}
		r.printf("  \033[1m%d.\033[0m %s %-36s %s%s\n",
			i+1, rec.CreatedAt.Format("2006-01-02 15:04"), truncate(rec.Query, 34), status, hit)
	}
	r.footer()
}

func (r *Report) result(res *models.AggregatedResult) {
	r.section("Primary: " + res.Summary.PrimarySource)
	r.estimate(res.Primary)
	r.printf("\n")

	r.section("Possible Market Rates")
	if len(res.PossibleMarketRates) == 0 {
		r.printf("  No corroborating sources\n")
	}
	for _, p := range res.PossibleMarketRates {
		r.printf("  %-14s \033[1;32m$%9.2f\033[0m  %s  %s\n",
			p.Estimate.Source, p.Estimate.MarketValue, confidenceBar(p.Estimate.Confidence), truncate(p.Reliability, 40))
	}
	r.printf("\n")

	r.section("Blended")
	r.estimate(res.Blended)
	r.printf("\n")

	r.section("Summary")
	r.printf("  Sources with data : \033[1m%d\033[0m\n", res.Summary.SourcesWithData)
	r.printf("  Recommendation    : \033[1m%s\033[0m\n", res.Summary.Recommendation)
}

func (r *Report) estimate(est *models.PriceEstimate) {
	if !est.HasData() {
		r.printf("  No price data available\n")
		if est != nil && est.Note != "" {
			r.printf("  %s\n", est.Note)
		}
		return
	}
	r.printf("  Market value : \033[1;32m$%.2f\033[0m\n", est.MarketValue)
	r.printf("  Pawn offer   : \033[1;36m$%.2f\033[0m\n", est.PawnValue)
	r.printf("  Range        : $%.2f – $%.2f\n", est.PriceRange.Min, est.PriceRange.Max)
	r.printf("  Confidence   : %s %.0f%%\n", confidenceBar(est.Confidence), est.Confidence*100)
	r.printf("  Data points  : %d\n", est.DataPoints)
	if est.Note != "" {
		r.printf("  Note         : %s\n", est.Note)
	}
	for i, s := range est.Samples {
		r.printf("  \033[1m%d.\033[0m %-40s \033[1;32m$%.2f\033[0m\n", i+1, truncate(s.Title, 38), s.Price)
	}
}

func confidenceBar(c float64) string {
	filled := int(c*10 + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
