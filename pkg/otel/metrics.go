package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/erain9/orderlab/pkg/otel"
)

// DispatcherMetrics holds the instruments recorded for each dispatcher operation
type DispatcherMetrics struct {
	// Latency
	operationDuration metric.Float64Histogram

	// Traffic
	operationsTotal metric.Int64Counter
	stepsTotal      metric.Int64Counter
	steps           metric.Int64Histogram

	// Errors
	errorsTotal metric.Int64Counter

	// Saturation
	collectionSize metric.Int64Gauge
}

// NewDispatcherMetrics creates the instruments on meter
func NewDispatcherMetrics(meter metric.Meter) (*DispatcherMetrics, error) {
	operationDuration, err := meter.Float64Histogram(
		"dispatcher.operation.duration",
		metric.WithDescription("Duration (seconds) of dispatcher operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	operationsTotal, err := meter.Int64Counter(
		"dispatcher.operations.total",
		metric.WithDescription("Total number of dispatcher operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	stepsTotal, err := meter.Int64Counter(
		"dispatcher.steps.total",
		metric.WithDescription("Total number of counted algorithm steps"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}

	steps, err := meter.Int64Histogram(
		"dispatcher.steps",
		metric.WithDescription("Steps counted per algorithm run"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"dispatcher.errors.total",
		metric.WithDescription("Total number of failed dispatcher operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	collectionSize, err := meter.Int64Gauge(
		"dispatcher.collection.size",
		metric.WithDescription("Number of orders held by a desk"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatcherMetrics{
		operationDuration: operationDuration,
		operationsTotal:   operationsTotal,
		stepsTotal:        stepsTotal,
		steps:             steps,
		errorsTotal:       errorsTotal,
		collectionSize:    collectionSize,
	}, nil
}

var (
	dispatcherMetrics     *DispatcherMetrics
	dispatcherMetricsOnce sync.Once
)

// GetDispatcherMetrics returns the DispatcherMetrics singleton built on the
// global meter provider. Instruments that fail to register stay nil and are
// skipped when recording.
func GetDispatcherMetrics() *DispatcherMetrics {
	dispatcherMetricsOnce.Do(func() {
		m, err := NewDispatcherMetrics(GetMeterProvider().Meter(instrumentationName))
		if err != nil {
			m = &DispatcherMetrics{}
		}
		dispatcherMetrics = m
	})
	return dispatcherMetrics
}

func operationAttrs(desk, algorithm string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String(AttributeDesk, desk),
		attribute.String(AttributeAlgorithm, algorithm),
	)
}

// RecordOperation records one completed operation and its step count
func (m *DispatcherMetrics) RecordOperation(ctx context.Context, desk, algorithm string, duration time.Duration, steps int) {
	if m == nil || m.operationsTotal == nil {
		return
	}

	attrs := operationAttrs(desk, algorithm)
	m.operationsTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
	m.stepsTotal.Add(ctx, int64(steps), attrs)
	m.steps.Record(ctx, int64(steps), attrs)
}

// RecordError increments the error counter
func (m *DispatcherMetrics) RecordError(ctx context.Context, desk, algorithm string) {
	if m == nil || m.errorsTotal == nil {
		return
	}
	m.errorsTotal.Add(ctx, 1, operationAttrs(desk, algorithm))
}

// RecordCollectionSize sets the current number of orders of a desk
func (m *DispatcherMetrics) RecordCollectionSize(ctx context.Context, desk string, size int) {
	if m == nil || m.collectionSize == nil {
		return
	}
	m.collectionSize.Record(ctx, int64(size), metric.WithAttributes(attribute.String(AttributeDesk, desk)))
}
