package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erain9/orderlab/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafka.Reader used by the consumer
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReportConsumer reads JSON run reports from a topic
type ReportConsumer struct {
	reader messageReader
}

// NewReportConsumer creates a consumer in the given consumer group
func NewReportConsumer(brokers []string, topic, groupID string) (*ReportConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: no brokers configured")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	return &ReportConsumer{reader: reader}, nil
}

// Consume calls handler for each report until ctx is done. Undecodable
// messages are skipped.
func (c *ReportConsumer) Consume(ctx context.Context, handler func(*messaging.RunReport) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var report messaging.RunReport
		if err := json.Unmarshal(msg.Value, &report); err != nil {
			continue
		}

		if err := handler(&report); err != nil {
			return err
		}
	}
}

// Close closes the Kafka reader
func (c *ReportConsumer) Close() error {
	return c.reader.Close()
}

// SetupConsumer starts a background consumer that logs every run report
func SetupConsumer(ctx context.Context, logger zerolog.Logger, brokers []string, topic, groupID string) (*ReportConsumer, error) {
	consumer, err := NewReportConsumer(brokers, topic, groupID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create Kafka consumer - continuing without Kafka support")
		return nil, err
	}

	go func() {
		logger.Info().Str("topic", topic).Msg("Starting Kafka consumer")
		err := consumer.Consume(ctx, func(report *messaging.RunReport) error {
			logger.Info().
				Str("desk", report.Desk).
				Str("algorithm", report.Algorithm).
				Int("steps", report.Steps).
				Int("matches", report.Matches).
				Int("collection", report.Collection).
				Int64("duration_micros", report.DurationMicros).
				Msg("Received run report")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return consumer, nil
}
