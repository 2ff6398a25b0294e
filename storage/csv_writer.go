package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"pawn-estimator/models"
)

var csvHeader = []string{
	"id", "created_at", "mode", "query", "market_value", "pawn_value", "confidence",
	"data_points", "cache_hit", "duration_ms", "sources", "error", "user_id", "client_ip",
}

// CSVWriter appends search records to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter opens (or creates) the CSV file at the given path and writes
// the header row when the file is new. Intermediate directories are created
// automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// Record appends one row.
func (c *CSVWriter) Record(_ context.Context, rec *models.SearchRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := []string{
		rec.ID,
		rec.CreatedAt.Format(time.RFC3339),
		rec.Mode,
		rec.Query,
		strconv.FormatFloat(rec.MarketValue, 'f', 2, 64),
		strconv.FormatFloat(rec.PawnValue, 'f', 2, 64),
		strconv.FormatFloat(rec.Confidence, 'f', 2, 64),
		strconv.Itoa(rec.DataPoints),
		strconv.FormatBool(rec.CacheHit),
		strconv.FormatInt(rec.DurationMs, 10),
		sourcesColumn(rec.Sources),
		rec.Error,
		rec.Caller.UserID,
		rec.Caller.ClientIP,
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}

	c.writer.Flush()
	return c.writer.Error()
}

// sourcesColumn flattens statuses to "ebay:ok:412ms;amazon:no_data:1200ms".
func sourcesColumn(statuses []models.SourceStatus) string {
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, fmt.Sprintf("%s:%s:%dms", s.Source, s.Outcome, s.LatencyMs))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
