package sql

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/syssam/rowlink/dialect/sql"

// TraceDriver wraps an Executor and records one OpenTelemetry span per
// statement.
type TraceDriver struct {
	observed
	tracer trace.Tracer
}

// TraceOption configures the TraceDriver.
type TraceOption func(*TraceDriver)

// WithTracer sets the tracer spans are created with. Default is the
// tracer of the global provider.
func WithTracer(t trace.Tracer) TraceOption {
	return func(d *TraceDriver) { d.tracer = t }
}

// NewTraceDriver wraps e with tracing. Spans are named "rowlink.query" or
// "rowlink.exec" and carry the db.system and db.statement attributes.
func NewTraceDriver(e Executor, opts ...TraceOption) *TraceDriver {
	d := &TraceDriver{}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	system := dialectOf(e)
	d.observed = observed{Executor: e, observe: func(ctx context.Context, op Op, query string, args []Value, start time.Time, err error) {
		_, span := d.tracer.Start(ctx, "rowlink."+string(op),
			trace.WithTimestamp(start),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		span.SetAttributes(
			attribute.String("db.system", system),
			attribute.String("db.statement", query),
			attribute.Int("db.args", len(args)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}}
	return d
}
