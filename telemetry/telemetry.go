// Package telemetry defines the logging, metrics, and tracing contracts
// used across the kernel. Every component accepts a Logger, Metrics, and
// Tracer rather than reaching for package-level globals; New constructors
// across the module substitute no-op implementations when these are nil.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type (
	// Logger emits structured log messages with key/value pairs. Implementations
	// are expected to be safe for concurrent use.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, timers, and gauges for runtime operations.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, d time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer creates spans for planner, tool, and phase-kernel execution.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...oteltrace.SpanStartOption) (context.Context, Span)
	}

	// Span represents a single unit of traced work.
	Span interface {
		End(opts ...oteltrace.SpanEndOption)
		AddEvent(name string, keyvals ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...oteltrace.EventOption)
	}
)
