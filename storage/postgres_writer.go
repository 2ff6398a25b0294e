package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"pawn-estimator/models"
	"pawn-estimator/utils"
)

// PostgresWriter persists search records to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond, Logger: logger}
	if err := retry.Do(ctx, "postgres-ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS search_history (
			id           UUID          PRIMARY KEY,
			query        TEXT          NOT NULL,
			mode         VARCHAR(20)   NOT NULL,
			market_value NUMERIC(12,2) NOT NULL DEFAULT 0,
			pawn_value   NUMERIC(12,2) NOT NULL DEFAULT 0,
			confidence   NUMERIC(4,2)  NOT NULL DEFAULT 0,
			data_points  INTEGER       NOT NULL DEFAULT 0,
			cache_hit    BOOLEAN       NOT NULL DEFAULT FALSE,
			duration_ms  BIGINT        NOT NULL DEFAULT 0,
			sources      JSONB         NOT NULL DEFAULT '[]',
			caller       JSONB         NOT NULL DEFAULT '{}',
			error        TEXT          NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_search_history_created ON search_history(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_search_history_query   ON search_history(lower(query));
	`)
	return err
}

// Record inserts one search record; a replayed id is ignored.
func (pw *PostgresWriter) Record(ctx context.Context, rec *models.SearchRecord) error {
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return fmt.Errorf("postgres: encode sources: %w", err)
	}
	caller, err := json.Marshal(rec.Caller)
	if err != nil {
		return fmt.Errorf("postgres: encode caller: %w", err)
	}

	_, err = pw.db.ExecContext(ctx, `
		INSERT INTO search_history
			(id, query, mode, market_value, pawn_value, confidence, data_points,
			 cache_hit, duration_ms, sources, caller, error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.Query, rec.Mode, rec.MarketValue, rec.PawnValue, rec.Confidence, rec.DataPoints,
		rec.CacheHit, rec.DurationMs, string(sources), string(caller), rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert search: %w", err)
	}
	return nil
}

// Recent retrieves the latest searches, newest first.
func (pw *PostgresWriter) Recent(ctx context.Context, limit int) ([]*models.SearchRecord, error) {
	rows, err := pw.db.QueryContext(ctx, `
		SELECT id, query, mode, market_value, pawn_value, confidence, data_points,
		       cache_hit, duration_ms, sources, caller, error, created_at
		FROM search_history
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch recent: %w", err)
	}
	defer rows.Close()

	var records []*models.SearchRecord
	for rows.Next() {
		rec := &models.SearchRecord{}
		var sources, caller []byte
		if err := rows.Scan(
			&rec.ID, &rec.Query, &rec.Mode, &rec.MarketValue, &rec.PawnValue, &rec.Confidence,
			&rec.DataPoints, &rec.CacheHit, &rec.DurationMs, &sources, &caller, &rec.Error, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if err := json.Unmarshal(sources, &rec.Sources); err != nil {
			return nil, fmt.Errorf("postgres: decode sources: %w", err)
		}
		if err := json.Unmarshal(caller, &rec.Caller); err != nil {
			return nil, fmt.Errorf("postgres: decode caller: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
