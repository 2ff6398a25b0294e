package storage

import (
	"context"

	"pawn-estimator/models"
)

// HistoryRecorder is the interface any search-history backend must satisfy.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *models.SearchRecord) error
	Close() error
}

// HistoryReader is implemented by backends that can list past searches.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]*models.SearchRecord, error)
}

// NopRecorder discards every record.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *models.SearchRecord) error { return nil }
func (NopRecorder) Close() error                                       { return nil }
