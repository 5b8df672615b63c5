package narrative

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/branching.ink/internal/platform/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "narrative"

// Metric names.
const (
	metricAdvanceTotal      = "narrative.advance.total"
	metricProgressConflicts = "narrative.progress.conflicts"
	metricRevisionDecisions = "narrative.revision.decisions"
)

type telemetry struct {
	tracer            trace.Tracer
	advanceTotal      metric.Int64Counter
	progressConflicts metric.Int64Counter
	revisionDecisions metric.Int64Counter
}

// newTelemetry builds instruments from the given providers, falling back to
// the global ones.
func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	advanceTotal, err := meter.Int64Counter(
		metricAdvanceTotal,
		metric.WithDescription("Reader moves processed, by action and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", metricAdvanceTotal, err)
	}
	progressConflicts, err := meter.Int64Counter(
		metricProgressConflicts,
		metric.WithDescription("Progress writes that lost an optimistic concurrency race"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", metricProgressConflicts, err)
	}
	revisionDecisions, err := meter.Int64Counter(
		metricRevisionDecisions,
		metric.WithDescription("Revision approvals and rejections"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", metricRevisionDecisions, err)
	}

	return &telemetry{
		tracer:            tp.Tracer(instrumentationName),
		advanceTotal:      advanceTotal,
		progressConflicts: progressConflicts,
		revisionDecisions: revisionDecisions,
	}, nil
}

func (t *telemetry) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// end closes span, marking it failed when err is set.
func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	span.End()
}

// outcome labels a result for metrics: "ok" or the domain error code.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperrors.CodeOf(err))
}
