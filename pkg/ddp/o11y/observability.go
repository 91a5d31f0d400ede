// Package o11y defines the metrics and tracing hooks used by the DDP client.
// Implementations live elsewhere (see package otel); a nil provider disables
// the corresponding instrumentation.
package o11y

import (
	"context"
)

// Config holds optional observability providers.
type Config struct {
	MetricsProvider MetricsProvider
	TracingProvider TracingProvider
	ServiceName     string
	ServiceVersion  string
}

// MetricsProvider creates named instruments.
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// TracingProvider starts spans.
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter only goes up.
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records a distribution, such as call latency in seconds.
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge represents a value that can go up and down. Set adds value to the
// current reading, so callers pass +1/-1 deltas.
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label is attached to a measurement or span as a string attribute.
type Label struct {
	Key   string
	Value string
}

type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)

// StartSpan starts a span on provider, or returns a span that does nothing
// when provider is nil.
func StartSpan(ctx context.Context, provider TracingProvider, name string, labels ...Label) (context.Context, Span) {
	if provider == nil {
		return ctx, nopSpan{}
	}
	ctx, span := provider.StartSpan(ctx, name)
	if len(labels) > 0 {
		span.SetAttributes(labels...)
	}
	return ctx, span
}

type nopSpan struct{}

func (nopSpan) SetAttributes(...Label)           {}
func (nopSpan) SetStatus(SpanStatusCode, string) {}
func (nopSpan) End()                             {}
