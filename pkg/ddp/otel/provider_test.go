package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/tsarna/ddp/pkg/ddp/o11y"
)

func TestProviderInstruments(t *testing.T) {
	p := NewProviderFrom(metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider(), "")
	ctx := context.Background()

	counter := p.Counter("ddp_frames_received_total")
	require.NotNil(t, counter)
	counter.Add(ctx, 1, o11y.Label{Key: "kind", Value: "added"})

	histogram := p.Histogram("ddp_call_duration_seconds")
	require.NotNil(t, histogram)
	histogram.Record(ctx, 0.25)

	gauge := p.Gauge("ddp_pending_calls")
	require.NotNil(t, gauge)
	gauge.Set(ctx, 1)
	gauge.Set(ctx, -1)
}

func TestProviderSpans(t *testing.T) {
	p := NewProviderFrom(metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider(), "test")

	ctx, span := p.StartSpan(context.Background(), "ddp.call")
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	span.SetAttributes(o11y.Label{Key: "method", Value: "login"})
	span.SetStatus(o11y.SpanStatusError, "denied")
	span.SetStatus(o11y.SpanStatusOK, "")
	span.SetStatus(o11y.SpanStatusUnset, "")
	span.End()
}

func TestNewProviderUsesGlobals(t *testing.T) {
	p := NewProvider("", "v0.0.0")
	assert.NotNil(t, p.meter)
	assert.NotNil(t, p.tracer)
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx := context.Background()
	got, span := o11y.StartSpan(ctx, nil, "ddp.call", o11y.Label{Key: "k", Value: "v"})
	assert.Equal(t, ctx, got)
	span.SetStatus(o11y.SpanStatusOK, "")
	span.End()
}

func TestAttributes(t *testing.T) {
	attrs := attributes([]o11y.Label{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}})
	require.Len(t, attrs, 2)
	assert.Equal(t, "a", string(attrs[0].Key))
	assert.Equal(t, "2", attrs[1].Value.AsString())
}
