package server

import (
	"context"
	"time"

	"github.com/erain9/orderlab/pkg/compare"
	"github.com/erain9/orderlab/pkg/core"
	"github.com/erain9/orderlab/pkg/logging"
	"github.com/erain9/orderlab/pkg/messaging"
	"github.com/erain9/orderlab/pkg/metrics"
	"github.com/erain9/orderlab/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DeskService runs dispatcher operations on the desks of a manager. Every
// operation is traced, measured and, when a sender is set, reported.
type DeskService struct {
	manager *DeskManager
	sender  messaging.ReportSender
	metrics *otel.DispatcherMetrics
	compare compare.Options
}

// NewDeskService creates a service. sender may be nil to disable reports.
func NewDeskService(manager *DeskManager, sender messaging.ReportSender, compareOpts compare.Options) *DeskService {
	return &DeskService{
		manager: manager,
		sender:  sender,
		metrics: otel.GetDispatcherMetrics(),
		compare: compareOpts,
	}
}

// Manager returns the desk manager of the service
func (s *DeskService) Manager() *DeskManager {
	return s.manager
}

// Generate replaces the orders of a desk with count random orders and returns
// the new collection size
func (s *DeskService) Generate(ctx context.Context, deskName string, count int) (int, error) {
	ctx, span := otel.StartDispatchSpan(ctx, otel.SpanGenerate,
		attribute.String(otel.AttributeDesk, deskName),
		attribute.Int(otel.AttributeCount, count),
	)
	defer span.End()

	desk, _, err := s.manager.GetDesk(ctx, deskName)
	if err != nil {
		otel.RecordError(span, err)
		return 0, err
	}

	var total int
	start := time.Now()
	err = desk.Do(func(d *core.Dispatcher) error {
		if err := d.Generate(count); err != nil {
			return err
		}
		var err error
		total, err = d.Len()
		return err
	})
	s.observe(ctx, deskName, core.AlgorithmGenerate, time.Since(start), -1, err)
	if err != nil {
		otel.RecordError(span, err)
		return 0, err
	}

	s.afterWrite(ctx, deskName, total)
	otel.AddAttributes(span, attribute.Int(otel.AttributeCollection, total))

	logger := logging.FromContext(ctx)
	logger.Info().
		Str("desk", deskName).
		Int("count", count).
		Msg("Generated orders")
	return total, nil
}

// AddOrder appends an order to a desk
func (s *DeskService) AddOrder(ctx context.Context, deskName string, order *core.Order) error {
	attrs := []attribute.KeyValue{attribute.String(otel.AttributeDesk, deskName)}
	if order != nil {
		attrs = append(attrs, attribute.Int(otel.AttributeOrderID, order.ID()))
		if courierID, ok := order.CourierID(); ok {
			attrs = append(attrs, attribute.Int(otel.AttributeCourierID, courierID))
		}
	}
	ctx, span := otel.StartDispatchSpan(ctx, otel.SpanAddOrder, attrs...)
	defer span.End()

	desk, _, err := s.manager.GetDesk(ctx, deskName)
	if err != nil {
		otel.RecordError(span, err)
		return err
	}

	var total int
	start := time.Now()
	err = desk.Do(func(d *core.Dispatcher) error {
		if err := d.Add(order); err != nil {
			return err
		}
		var err error
		total, err = d.Len()
		return err
	})
	s.observe(ctx, deskName, core.AlgorithmAdd, time.Since(start), -1, err)
	if err != nil {
		otel.RecordError(span, err)
		return err
	}

	s.afterWrite(ctx, deskName, total)
	return nil
}

// Orders returns every order of a desk in storage order
func (s *DeskService) Orders(ctx context.Context, deskName string) ([]*core.Order, error) {
	desk, _, err := s.manager.GetDesk(ctx, deskName)
	if err != nil {
		return nil, err
	}

	var orders []*core.Order
	err = desk.Do(func(d *core.Dispatcher) error {
		var loadErr error
		orders, loadErr = d.Orders()
		return loadErr
	})
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Error().Err(err).Str("desk", deskName).Msg("Failed to load orders")
		return nil, err
	}
	return orders, nil
}

// Run executes a search or sort on a desk and publishes its run report
func (s *DeskService) Run(ctx context.Context, deskName string, algorithm core.Algorithm, arg int) (*core.Outcome, error) {
	spanName := otel.SpanSort
	attrs := []attribute.KeyValue{
		attribute.String(otel.AttributeDesk, deskName),
		attribute.String(otel.AttributeAlgorithm, string(algorithm)),
	}
	switch algorithm {
	case core.AlgorithmLinearSearch:
		spanName = otel.SpanSearch
		attrs = append(attrs, attribute.Int(otel.AttributeCourierID, arg))
	case core.AlgorithmBinarySearch:
		spanName = otel.SpanSearch
		attrs = append(attrs, attribute.Int(otel.AttributeOrderID, arg))
	}

	ctx, span := otel.StartDispatchSpan(ctx, spanName, attrs...)
	defer span.End()

	desk, _, err := s.manager.GetDesk(ctx, deskName)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	var outcome *core.Outcome
	start := time.Now()
	err = desk.Do(func(d *core.Dispatcher) error {
		var runErr error
		outcome, runErr = d.Run(algorithm, arg)
		return runErr
	})
	duration := time.Since(start)

	if err != nil {
		s.observe(ctx, deskName, algorithm, duration, -1, err)
		otel.RecordError(span, err)
		return nil, err
	}
	s.observe(ctx, deskName, algorithm, duration, outcome.Steps, nil)

	otel.AddAttributes(span,
		attribute.Int(otel.AttributeSteps, outcome.Steps),
		attribute.Int(otel.AttributeMatches, outcome.Matches()),
		attribute.Int(otel.AttributeCollection, outcome.Collection),
	)

	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("desk", deskName).
		Str("algorithm", string(algorithm)).
		Int("steps", outcome.Steps).
		Int("matches", outcome.Matches()).
		Msg("Dispatcher run completed")

	report := &messaging.RunReport{
		Desk:           deskName,
		Algorithm:      string(algorithm),
		Steps:          outcome.Steps,
		Matches:        outcome.Matches(),
		Collection:     outcome.Collection,
		DurationMicros: duration.Microseconds(),
		At:             time.Now().UTC(),
	}
	if requestID, ok := logging.RequestID(ctx); ok {
		report.RequestID = requestID
	}
	s.publish(ctx, report)

	return outcome, nil
}

// Compare runs the algorithm comparison with the service's defaults
func (s *DeskService) Compare(ctx context.Context) (*compare.Report, error) {
	ctx, span := otel.StartDispatchSpan(ctx, otel.SpanCompare)
	defer span.End()

	report, err := compare.Run(ctx, s.compare)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	otel.AddAttributes(span, attribute.Int(otel.AttributeCount, len(report.Results)))
	return report, nil
}

func (s *DeskService) observe(ctx context.Context, deskName string, algorithm core.Algorithm, duration time.Duration, steps int, err error) {
	metrics.ObserveOperation(deskName, string(algorithm), duration, steps, err)
	if err != nil {
		s.metrics.RecordError(ctx, deskName, string(algorithm))
		return
	}
	s.metrics.RecordOperation(ctx, deskName, string(algorithm), duration, max(steps, 0))
}

func (s *DeskService) afterWrite(ctx context.Context, deskName string, total int) {
	s.metrics.RecordCollectionSize(ctx, deskName, total)
	if err := s.manager.UpdateDeskInfo(ctx, deskName, total); err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Str("desk", deskName).Msg("Failed to update desk info")
	}
}

func (s *DeskService) publish(ctx context.Context, report *messaging.RunReport) {
	if s.sender == nil {
		return
	}

	ctx, span := otel.StartDispatchSpan(ctx, otel.SpanPublish,
		attribute.String(otel.AttributeDesk, report.Desk),
		attribute.String(otel.AttributeAlgorithm, report.Algorithm),
	)
	defer span.End()

	if err := s.sender.SendRunReport(ctx, report); err != nil {
		otel.RecordError(span, err)
		metrics.ReportsDropped.Inc()
		logger := logging.FromContext(ctx)
		logger.Error().
			Err(err).
			Str("desk", report.Desk).
			Str("algorithm", report.Algorithm).
			Msg("Failed to publish run report")
	}
}
