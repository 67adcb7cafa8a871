package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitWithoutCollector(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)

	cleanup, err := Init(Config{})
	require.NoError(t, err)
	cleanup()

	assert.NotNil(t, GetDispatcherTracer())
	assert.NotNil(t, GetMeterProvider())
	assert.NotNil(t, GetTextMapPropagator())
}

func TestStartDispatchSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, InitForTesting(tp.Tracer("test")))
	t.Cleanup(ResetForTesting)

	_, span := StartDispatchSpan(context.Background(), SpanSort,
		attribute.String(AttributeDesk, "alpha"),
		attribute.String(AttributeAlgorithm, "BUBBLE_SORT"),
	)
	AddAttributes(span, attribute.Int(AttributeSteps, 10))
	RecordError(span, errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, SpanSort, ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.Int(AttributeSteps, 10))
	assert.Contains(t, ended[0].Attributes(), attribute.String(AttributeDesk, "alpha"))

	// nil spans and errors are ignored
	AddAttributes(nil)
	RecordError(nil, errors.New("ignored"))
	RecordError(span, nil)
}

func TestDispatcherMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewDispatcherMetrics(mp.Meter(instrumentationName))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordOperation(ctx, "alpha", "BUBBLE_SORT", 2*time.Millisecond, 10)
	m.RecordOperation(ctx, "alpha", "BUBBLE_SORT", time.Millisecond, 6)
	m.RecordError(ctx, "alpha", "GENERATE")
	m.RecordCollectionSize(ctx, "alpha", 5)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := make(map[string]metricdata.Metrics)
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		byName[metric.Name] = metric
	}

	ops, ok := byName["dispatcher.operations.total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, ops.DataPoints, 1)
	assert.EqualValues(t, 2, ops.DataPoints[0].Value)

	steps, ok := byName["dispatcher.steps.total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.EqualValues(t, 16, steps.DataPoints[0].Value)

	errs, ok := byName["dispatcher.errors.total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.EqualValues(t, 1, errs.DataPoints[0].Value)

	size, ok := byName["dispatcher.collection.size"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.EqualValues(t, 5, size.DataPoints[0].Value)
}

func TestDispatcherMetricsNilSafe(t *testing.T) {
	var m *DispatcherMetrics
	m.RecordOperation(context.Background(), "a", "b", time.Second, 1)
	m.RecordError(context.Background(), "a", "b")
	m.RecordCollectionSize(context.Background(), "a", 1)

	empty := &DispatcherMetrics{}
	empty.RecordOperation(context.Background(), "a", "b", time.Second, 1)

	assert.NotNil(t, GetDispatcherMetrics())
}
