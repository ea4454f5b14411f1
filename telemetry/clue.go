package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// ClueLogger wraps goa.design/clue/log for kernel logging.
	ClueLogger struct{}

	// ClueMetrics wraps OTel metrics for kernel instrumentation.
	ClueMetrics struct {
		meter metric.Meter
	}

	// ClueTracer wraps OTel tracing for kernel spans.
	ClueTracer struct {
		tracer oteltrace.Tracer
	}

	clueSpan struct {
		span oteltrace.Span
	}
)

// NewClueLogger constructs a Logger that delegates to goa.design/clue/log.
// The logger reads formatting and debug settings from the context (set via
// log.Context and log.WithFormat/log.WithDebug).
func NewClueLogger() Logger {
	return ClueLogger{}
}

// NewClueMetrics constructs a Metrics recorder backed by the global OTel
// MeterProvider. Configure the provider via clue.ConfigureOpenTelemetry
// before invoking kernel operations.
func NewClueMetrics(scope string) Metrics {
	return &ClueMetrics{meter: otel.Meter(scope)}
}

// NewClueTracer constructs a Tracer backed by the global OTel TracerProvider.
func NewClueTracer(scope string) Tracer {
	return &ClueTracer{tracer: otel.Tracer(scope)}
}

// Debug emits a debug-level log message with structured key-value pairs.
func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToFielders(keyvals)...)...)
}

// Info emits an info-level log message with structured key-value pairs.
func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToFielders(keyvals)...)...)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fielders := []log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}
	log.Warn(ctx, append(fielders, kvToFielders(keyvals)...)...)
}

// Error emits an error-level log message with structured key-value pairs.
func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToFielders(keyvals)...)...)
}

func (m *ClueMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagAttrs(tags)...))
}

func (m *ClueMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(context.Background(), d.Seconds(), metric.WithAttributes(tagAttrs(tags)...))
}

// RecordGauge records a gauge value. OTel has no synchronous gauge
// instrument, so gauges are recorded as a suffixed histogram.
func (m *ClueMetrics) RecordGauge(name string, value float64, tags ...string) {
	hist, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	hist.Record(context.Background(), value, metric.WithAttributes(tagAttrs(tags)...))
}

func (t *ClueTracer) Start(ctx context.Context, name string, opts ...oteltrace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &clueSpan{span: span}
}

func (s *clueSpan) End(opts ...oteltrace.SpanEndOption) { s.span.End(opts...) }

func (s *clueSpan) AddEvent(name string, keyvals ...any) {
	s.span.AddEvent(name, oteltrace.WithAttributes(kvToAttrs(keyvals)...))
}

func (s *clueSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *clueSpan) RecordError(err error, opts ...oteltrace.EventOption) {
	s.span.RecordError(err, opts...)
}

// kvToFielders converts alternating key/value pairs into clue log fielders.
// Non-string keys are skipped.
func kvToFielders(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fielders = append(fielders, log.KV{K: k, V: keyvals[i+1]})
	}
	return fielders
}

// tagAttrs converts "key=value" tag strings into OTel attributes. Tags
// without an "=" are recorded as boolean presence flags.
func tagAttrs(tags []string) []attribute.KeyValue {
	if len(tags) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for _, t := range tags {
		if k, v, ok := strings.Cut(t, "="); ok {
			attrs = append(attrs, attribute.String(k, v))
		} else {
			attrs = append(attrs, attribute.Bool(t, true))
		}
	}
	return attrs
}

// kvToAttrs converts alternating key/value pairs into OTel span attributes.
func kvToAttrs(keyvals []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		switch v := keyvals[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(k, v))
		case int:
			attrs = append(attrs, attribute.Int(k, v))
		case int64:
			attrs = append(attrs, attribute.Int64(k, v))
		case float64:
			attrs = append(attrs, attribute.Float64(k, v))
		case bool:
			attrs = append(attrs, attribute.Bool(k, v))
		case error:
			attrs = append(attrs, attribute.String(k, v.Error()))
		default:
			attrs = append(attrs, attribute.String(k, ""))
		}
	}
	return attrs
}
