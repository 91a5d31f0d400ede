// Package otel adapts OpenTelemetry to the o11y interfaces used by the DDP
// client.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tsarna/ddp/pkg/ddp/o11y"
)

// DefaultInstrumentationName is used when NewProvider is given an empty name.
const DefaultInstrumentationName = "github.com/tsarna/ddp"

// Provider implements o11y.MetricsProvider and o11y.TracingProvider on top of
// the global OpenTelemetry meter and tracer providers.
type Provider struct {
	meter  metric.Meter
	tracer trace.Tracer
}

var (
	_ o11y.MetricsProvider = (*Provider)(nil)
	_ o11y.TracingProvider = (*Provider)(nil)
)

// NewProvider creates a Provider using the global OpenTelemetry providers.
func NewProvider(name, version string) *Provider {
	if name == "" {
		name = DefaultInstrumentationName
	}
	return &Provider{
		meter:  otel.Meter(name, metric.WithInstrumentationVersion(version)),
		tracer: otel.Tracer(name, trace.WithInstrumentationVersion(version)),
	}
}

// NewProviderFrom builds a Provider from explicit meter and tracer providers,
// which is what tests and embedding applications with their own SDK setup use.
func NewProviderFrom(mp metric.MeterProvider, tp trace.TracerProvider, name string) *Provider {
	if name == "" {
		name = DefaultInstrumentationName
	}
	return &Provider{
		meter:  mp.Meter(name),
		tracer: tp.Tracer(name),
	}
}

// Counter creates an Int64Counter. Instrument creation errors yield a no-op
// instrument from the meter, so they are not reported.
func (p *Provider) Counter(name string) o11y.Counter {
	counter, _ := p.meter.Int64Counter(name)
	return &counterAdapter{counter: counter}
}

// Histogram creates a Float64Histogram.
func (p *Provider) Histogram(name string) o11y.Histogram {
	histogram, _ := p.meter.Float64Histogram(name)
	return &histogramAdapter{histogram: histogram}
}

// Gauge creates a Float64UpDownCounter; Set adds a delta.
func (p *Provider) Gauge(name string) o11y.Gauge {
	gauge, _ := p.meter.Float64UpDownCounter(name)
	return &gaugeAdapter{gauge: gauge}
}

func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &spanAdapter{span: span}
}

func attributes(labels []o11y.Label) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(labels))
	for i, label := range labels {
		attrs[i] = attribute.String(label.Key, label.Value)
	}
	return attrs
}

type counterAdapter struct {
	counter metric.Int64Counter
}

func (c *counterAdapter) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	c.counter.Add(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type histogramAdapter struct {
	histogram metric.Float64Histogram
}

func (h *histogramAdapter) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type gaugeAdapter struct {
	gauge metric.Float64UpDownCounter
}

func (g *gaugeAdapter) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	g.gauge.Add(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type spanAdapter struct {
	span trace.Span
}

func (s *spanAdapter) SetAttributes(labels ...o11y.Label) {
	s.span.SetAttributes(attributes(labels)...)
}

func (s *spanAdapter) SetStatus(code o11y.SpanStatusCode, description string) {
	switch code {
	case o11y.SpanStatusOK:
		s.span.SetStatus(codes.Ok, description)
	case o11y.SpanStatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *spanAdapter) End() {
	s.span.End()
}
