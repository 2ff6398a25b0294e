package storage

import (
	"context"
	"fmt"

	"pawn-estimator/config"
	"pawn-estimator/utils"
)

// Open builds the history recorder selected by cfg.HistorySink.
func Open(ctx context.Context, cfg *config.Config, logger *utils.Logger) (HistoryRecorder, error) {
	switch cfg.HistorySink {
	case config.SinkNone, "":
		return NopRecorder{}, nil
	case config.SinkCSV:
		w, err := NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.SinkPostgres:
		w, err := NewPostgresWriter(ctx, cfg.DSN(), logger)
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.SinkKafka:
		return NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("storage: unknown history sink %q", cfg.HistorySink)
	}
}
