package services

import (
	"context"
	"time"

	"pawn-estimator/models"
	"pawn-estimator/storage"
	"pawn-estimator/utils"
)

const defaultRecordTimeout = 5 * time.Second

// HistoryDispatcher hands search records to a recorder in the background.
// Dispatch never blocks the caller: when every worker is busy the record is
// dropped and logged, and recorder errors are logged and swallowed.
type HistoryDispatcher struct {
	recorder storage.HistoryRecorder
	pool     *utils.WorkerPool
	timeout  time.Duration
	logger   *utils.Logger
}

// NewHistoryDispatcher runs at most workers Record calls at once.
func NewHistoryDispatcher(recorder storage.HistoryRecorder, workers int, logger *utils.Logger) *HistoryDispatcher {
	if recorder == nil {
		recorder = storage.NopRecorder{}
	}
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &HistoryDispatcher{
		recorder: recorder,
		pool:     utils.NewWorkerPool(workers),
		timeout:  defaultRecordTimeout,
		logger:   logger,
	}
}

// Dispatch records rec asynchronously. A nil dispatcher does nothing.
func (d *HistoryDispatcher) Dispatch(rec *models.SearchRecord) {
	if d == nil || rec == nil {
		return
	}
	accepted := d.pool.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.recorder.Record(ctx, rec); err != nil {
			d.logger.Warn("[history] Failed to record search %s (%q): %v", rec.ID, rec.Query, err)
		}
	})
	if !accepted {
		d.logger.Warn("[history] Workers saturated, dropping search record %s (%q)", rec.ID, rec.Query)
	}
}

// Close waits for in-flight records and closes the recorder. Later
// dispatches are dropped.
func (d *HistoryDispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.pool.Close()
	if n := d.pool.Dropped(); n > 0 {
		d.logger.Warn("[history] %d search records were dropped", n)
	}
	return d.recorder.Close()
}
