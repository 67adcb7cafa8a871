package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erain9/orderlab/pkg/messaging"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by the sender
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReportSender implements messaging.ReportSender using kafka-go
type KafkaReportSender struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

// NewKafkaReportSender creates a new Kafka report sender
func NewKafkaReportSender(brokers []string, topic string) (*KafkaReportSender, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sender: no brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka sender: empty topic")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return &KafkaReportSender{
		writer:  writer,
		topic:   topic,
		timeout: 5 * time.Second,
	}, nil
}

// SendRunReport publishes a report as JSON keyed by desk name
func (k *KafkaReportSender) SendRunReport(ctx context.Context, report *messaging.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	msg := kafka.Message{
		Key:   report.Key(),
		Value: data,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Topic returns the destination topic
func (k *KafkaReportSender) Topic() string {
	return k.topic
}

// Close closes the Kafka writer
func (k *KafkaReportSender) Close() error {
	return k.writer.Close()
}

var _ messaging.ReportSender = (*KafkaReportSender)(nil)
