// Package kafka writes run summaries to the platform's run-log topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// RunLogWriter appends one RunSummary per batch execution to the run-log
// topic. It implements pipeline.RunLog.
type RunLogWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewRunLogWriter creates a Kafka producer for the run-log topic.
func NewRunLogWriter(brokers []string, topic string, logger *slog.Logger) *RunLogWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &RunLogWriter{writer: w, logger: logger}
}

// Append publishes a finalized run summary.
func (w *RunLogWriter) Append(ctx context.Context, summary domain.RunSummary) error {
	msg, err := serializeSummary(summary)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *RunLogWriter) Close() error {
	return w.writer.Close()
}

// serializeSummary marshals a RunSummary into a Kafka message keyed by run id.
func serializeSummary(summary domain.RunSummary) (kafkago.Message, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(summary.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "job_name", Value: []byte(summary.JobName)},
			{Key: "success", Value: []byte(strconv.FormatBool(summary.Success))},
			{Key: "completed_at", Value: []byte(summary.CompletedAt.Format(time.RFC3339))},
		},
	}, nil
}
