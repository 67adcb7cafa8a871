package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanGenerate = "generate_orders"
	SpanAddOrder = "add_order"
	SpanSearch   = "search_orders"
	SpanSort     = "sort_orders"
	SpanPublish  = "publish_report"
	SpanCompare  = "compare_algorithms"

	// Attribute keys
	AttributeDesk       = "desk.name"
	AttributeAlgorithm  = "dispatcher.algorithm"
	AttributeSteps      = "dispatcher.steps"
	AttributeMatches    = "dispatcher.matches"
	AttributeCollection = "dispatcher.collection"
	AttributeOrderID    = "order.id"
	AttributeCourierID  = "order.courier_id"
	AttributeCount      = "order.count"
)

// StartDispatchSpan starts a new span for a dispatcher operation
func StartDispatchSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetDispatcherTracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

// RecordError marks the span failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
