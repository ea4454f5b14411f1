package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type (
	// NoopLogger discards all log messages.
	NoopLogger struct{}
	// NoopMetrics discards all metrics.
	NoopMetrics struct{}
	// NoopTracer creates no-op spans.
	NoopTracer struct{}

	noopSpan struct{}
)

// Debug discards the message.
func (NoopLogger) Debug(context.Context, string, ...any) {}

// Info discards the message.
func (NoopLogger) Info(context.Context, string, ...any) {}

// Warn discards the message.
func (NoopLogger) Warn(context.Context, string, ...any) {}

// Error discards the message.
func (NoopLogger) Error(context.Context, string, ...any) {}

// IncCounter discards the counter.
func (NoopMetrics) IncCounter(string, float64, ...string) {}

// RecordTimer discards the timer.
func (NoopMetrics) RecordTimer(string, time.Duration, ...string) {}

// RecordGauge discards the gauge.
func (NoopMetrics) RecordGauge(string, float64, ...string) {}

// Start returns a no-op span without modifying the context.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...oteltrace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) End(...oteltrace.SpanEndOption)                     {}
func (noopSpan) AddEvent(string, ...any)                            {}
func (noopSpan) SetStatus(codes.Code, string)                       {}
func (noopSpan) RecordError(error, ...oteltrace.EventOption)        {}
