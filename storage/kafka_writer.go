package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"pawn-estimator/models"
)

// MessageWriter is the subset of *kafka.Writer the recorder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter publishes search records as JSON, keyed by normalised query
// so repeat searches land on the same partition.
type KafkaWriter struct {
	writer MessageWriter
}

// NewKafkaWriter creates a synchronous producer for topic.
func NewKafkaWriter(brokers []string, topic string) *KafkaWriter {
	return NewKafkaWriterWith(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    50,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Zstd,
	})
}

// NewKafkaWriterWith wraps an existing writer.
func NewKafkaWriterWith(w MessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}

func (k *KafkaWriter) Record(ctx context.Context, rec *models.SearchRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kafka: encode record: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strings.ToLower(strings.TrimSpace(rec.Query))),
		Value: value,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "mode", Value: []byte(rec.Mode)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

func (k *KafkaWriter) Close() error {
	return k.writer.Close()
}
