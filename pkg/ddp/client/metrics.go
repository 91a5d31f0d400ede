package client

import (
	"context"
	"time"

	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/o11y"
)

// clientMetrics holds the instruments the client records to. A nil
// *clientMetrics records nothing.
type clientMetrics struct {
	connections      o11y.Counter
	connectionErrors o11y.Counter

	framesReceived o11y.Counter // by kind
	framesSent     o11y.Counter // by tag
	decodeErrors   o11y.Counter
	protocolErrors o11y.Counter
	authErrors     o11y.Counter

	callDuration        o11y.Histogram
	pendingCalls        o11y.Gauge
	subscriptions       o11y.Counter // by outcome
	activeSubscriptions o11y.Gauge
}

func newClientMetrics(provider o11y.MetricsProvider) *clientMetrics {
	if provider == nil {
		return nil
	}

	return &clientMetrics{
		connections:      provider.Counter("ddp_connections_total"),
		connectionErrors: provider.Counter("ddp_connection_errors_total"),

		framesReceived: provider.Counter("ddp_frames_received_total"),
		framesSent:     provider.Counter("ddp_frames_sent_total"),
		decodeErrors:   provider.Counter("ddp_decode_errors_total"),
		protocolErrors: provider.Counter("ddp_protocol_errors_total"),
		authErrors:     provider.Counter("ddp_auth_errors_total"),

		callDuration:        provider.Histogram("ddp_call_duration_seconds"),
		pendingCalls:        provider.Gauge("ddp_pending_calls"),
		subscriptions:       provider.Counter("ddp_subscriptions_total"),
		activeSubscriptions: provider.Gauge("ddp_active_subscriptions"),
	}
}

func (m *clientMetrics) recordConnect(ctx context.Context, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.connectionErrors.Add(ctx, 1)
		return
	}
	m.connections.Add(ctx, 1)
}

func (m *clientMetrics) recordFrame(ctx context.Context, msg message.Message) {
	if m == nil {
		return
	}

	kind := msg.Kind()
	m.framesReceived.Add(ctx, 1, o11y.Label{Key: "kind", Value: kind.String()})

	if kind == message.KindError && msg.Reason() == message.ParseErrorReason {
		m.decodeErrors.Add(ctx, 1)
		return
	}
	if msg.IsError() {
		m.protocolErrors.Add(ctx, 1, o11y.Label{Key: "kind", Value: kind.String()})
	}
}

func (m *clientMetrics) recordSent(ctx context.Context, tag string) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1, o11y.Label{Key: "msg", Value: tag})
}

func (m *clientMetrics) recordAuthError(ctx context.Context) {
	if m == nil {
		return
	}
	m.authErrors.Add(ctx, 1)
}

func (m *clientMetrics) callStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.pendingCalls.Set(ctx, 1)
}

func (m *clientMetrics) callFinished(ctx context.Context, method string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.pendingCalls.Set(ctx, -1)
	m.callDuration.Record(ctx, time.Since(started).Seconds(),
		o11y.Label{Key: "method", Value: method},
		o11y.Label{Key: "outcome", Value: outcome(err)},
	)
}

func (m *clientMetrics) recordSubscription(ctx context.Context, name string, err error) {
	if m == nil {
		return
	}
	m.subscriptions.Add(ctx, 1,
		o11y.Label{Key: "name", Value: name},
		o11y.Label{Key: "outcome", Value: outcome(err)},
	)
}

// subscriptionActive moves the ready-subscription gauge by delta.
func (m *clientMetrics) subscriptionActive(ctx context.Context, delta float64) {
	if m == nil {
		return
	}
	m.activeSubscriptions.Set(ctx, delta)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
