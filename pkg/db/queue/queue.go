package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/erain9/orderlab/pkg/messaging"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultBroker = "localhost:9092"
	defaultTopic  = "orderlab-runs"
	maxRetry      = 5
)

// Options selects the brokers and topic of the queue transport
type Options struct {
	Brokers []string
	Topic   string
}

func (o Options) withDefaults() Options {
	if len(o.Brokers) == 0 {
		o.Brokers = []string{defaultBroker}
	}
	if o.Topic == "" {
		o.Topic = defaultTopic
	}
	return o
}

// newSyncProducer is swapped in tests
var newSyncProducer = sarama.NewSyncProducer

// QueueReportSender implements messaging.ReportSender over sarama, encoding
// each report as a protobuf Struct
type QueueReportSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueReportSender creates a sender with a synchronous producer
func NewQueueReportSender(opts Options) (*QueueReportSender, error) {
	opts = opts.withDefaults()

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = maxRetry

	producer, err := newSyncProducer(opts.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &QueueReportSender{
		producer: producer,
		topic:    opts.Topic,
	}, nil
}

// SendRunReport sends the report to the queue
func (q *QueueReportSender) SendRunReport(ctx context.Context, report *messaging.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageBytes, err := MarshalRunReport(report)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.ByteEncoder(report.Key()),
		Value: sarama.ByteEncoder(messageBytes),
	}

	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the producer
func (q *QueueReportSender) Close() error {
	return q.producer.Close()
}

// MarshalRunReport encodes a report as a protobuf Struct
func MarshalRunReport(report *messaging.RunReport) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]interface{}{
		"desk":            report.Desk,
		"algorithm":       report.Algorithm,
		"steps":           report.Steps,
		"matches":         report.Matches,
		"collection":      report.Collection,
		"duration_micros": report.DurationMicros,
		"request_id":      report.RequestID,
		"at":              report.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build run report message: %w", err)
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run report: %w", err)
	}
	return data, nil
}

// UnmarshalRunReport decodes a report produced by MarshalRunReport
func UnmarshalRunReport(data []byte) (*messaging.RunReport, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run report: %w", err)
	}

	fields := msg.GetFields()
	report := &messaging.RunReport{
		Desk:           fields["desk"].GetStringValue(),
		Algorithm:      fields["algorithm"].GetStringValue(),
		Steps:          int(fields["steps"].GetNumberValue()),
		Matches:        int(fields["matches"].GetNumberValue()),
		Collection:     int(fields["collection"].GetNumberValue()),
		DurationMicros: int64(fields["duration_micros"].GetNumberValue()),
		RequestID:      fields["request_id"].GetStringValue(),
	}

	if at := fields["at"].GetStringValue(); at != "" {
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("failed to parse report time: %w", err)
		}
		report.At = parsed
	}

	return report, nil
}

// QueueReportConsumer reads run reports from partition 0 of the topic
type QueueReportConsumer struct {
	consumer sarama.Consumer
	topic    string
	done     chan struct{}
}

// NewQueueReportConsumer creates a consumer connected to the brokers
func NewQueueReportConsumer(opts Options) (*QueueReportConsumer, error) {
	opts = opts.withDefaults()

	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumer(opts.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &QueueReportConsumer{
		consumer: consumer,
		topic:    opts.Topic,
		done:     make(chan struct{}),
	}, nil
}

// ConsumeRunReports calls handler for every decodable report until Close
func (c *QueueReportConsumer) ConsumeRunReports(handler func(*messaging.RunReport) error) error {
	partitionConsumer, err := c.consumer.ConsumePartition(c.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	for {
		select {
		case msg, ok := <-partitionConsumer.Messages():
			if !ok {
				return nil
			}
			report, err := UnmarshalRunReport(msg.Value)
			if err != nil {
				continue
			}
			if err := handler(report); err != nil {
				return err
			}
		case consumerErr, ok := <-partitionConsumer.Errors():
			if !ok {
				return nil
			}
			return consumerErr.Err
		case <-c.done:
			return nil
		}
	}
}

// Close stops consumption and closes the consumer
func (c *QueueReportConsumer) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return c.consumer.Close()
}

var _ messaging.ReportSender = (*QueueReportSender)(nil)
