package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of pipeline spans
const TracerName = "fredcli.operations"

// OperationTracer creates the spans of series runs and their steps
type OperationTracer struct {
	tracer trace.Tracer
}

// NewOperationTracer uses the global tracer provider
func NewOperationTracer() *OperationTracer {
	return &OperationTracer{tracer: otel.Tracer(TracerName)}
}

// TraceRun starts the span of a series run
func (pt *OperationTracer) TraceRun(ctx context.Context, state *OperationState) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "series.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("series.name", state.Series.Name),
			attribute.String("series.id", state.Series.SeriesID),
			attribute.Bool("series.raw_only", state.Series.RawOnly),
		),
	)
}

// TraceStep starts the span of one step
func (pt *OperationTracer) TraceStep(ctx context.Context, state *OperationState, step Step) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "series.step."+step.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("step.id", step.ID()),
		),
	)
}

// RecordStepCompletion ends a step span with its outcome
func (pt *OperationTracer) RecordStepCompletion(span trace.Span, duration time.Duration, err error) {
	span.SetAttributes(attribute.Float64("step.duration_seconds", duration.Seconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordRunCompletion ends a run span with its report
func (pt *OperationTracer) RecordRunCompletion(span trace.Span, state *OperationState) {
	report := state.Report()
	span.SetAttributes(
		attribute.String("run.status", string(report.Status)),
		attribute.Int("run.rows", report.Rows),
		attribute.Int("run.raw_bytes", report.RawBytes),
	)
	if report.ErrorType != "" {
		span.SetAttributes(attribute.String("error.type", report.ErrorType))
		span.SetStatus(codes.Error, report.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
