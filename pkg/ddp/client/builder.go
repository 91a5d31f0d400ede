package client

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tsarna/ddp/pkg/ddp/collection"
	"github.com/tsarna/ddp/pkg/ddp/o11y"
	"github.com/tsarna/ddp/pkg/ddp/shared"
	"go.uber.org/zap"
)

const (
	// DefaultDialTimeout bounds dialing plus the connect handshake.
	DefaultDialTimeout = 30 * time.Second

	// DefaultWriteChannelSize is the number of frames that may be queued for
	// the write loop.
	DefaultWriteChannelSize = 100

	// DefaultReadLimit is the largest frame accepted from the server. Initial
	// subscription data easily exceeds the transport's 32 KiB default.
	DefaultReadLimit int64 = 1 << 20
)

// ClientBuilder provides a fluent interface for building DDP clients.
type ClientBuilder struct {
	url              string
	logger           *zap.Logger
	dialTimeout      time.Duration
	writeChannelSize int
	readLimit        int64
	headers          map[string][]string
	monitor          Monitor
	dataHandler      DataHandler
	store            *collection.Store
	metricsProvider  o11y.MetricsProvider
	tracingProvider  o11y.TracingProvider
	heartbeat        string
	serviceName      string
	serviceVersion   string
}

// NewClient creates a new client builder with default settings.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		dialTimeout:      DefaultDialTimeout,
		logger:           zap.NewNop(),
		writeChannelSize: DefaultWriteChannelSize,
		readLimit:        DefaultReadLimit,
	}
}

// WithURL sets the WebSocket URL of the server, e.g. ws://host:3000/websocket.
func (b *ClientBuilder) WithURL(url string) *ClientBuilder {
	b.url = url
	return b
}

// WithLogger sets the logger. A nil logger is ignored.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the time allowed for dialing and the connect
// handshake. Non-positive values are ignored.
func (b *ClientBuilder) WithDialTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithWriteChannelSize sets the outbound frame queue size. Non-positive values
// are ignored.
func (b *ClientBuilder) WithWriteChannelSize(size int) *ClientBuilder {
	if size > 0 {
		b.writeChannelSize = size
	}
	return b
}

// WithReadLimit sets the maximum inbound frame size in bytes. Non-positive
// values are ignored.
func (b *ClientBuilder) WithReadLimit(limit int64) *ClientBuilder {
	if limit > 0 {
		b.readLimit = limit
	}
	return b
}

// WithHeaders adds HTTP headers to the WebSocket handshake.
func (b *ClientBuilder) WithHeaders(headers map[string][]string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	for key, values := range headers {
		b.headers[key] = values
	}
	return b
}

// WithHeader sets a single handshake header.
func (b *ClientBuilder) WithHeader(key, value string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	b.headers[key] = []string{value}
	return b
}

// WithMonitor sets a monitor for connection lifecycle and auth failures.
func (b *ClientBuilder) WithMonitor(monitor Monitor) *ClientBuilder {
	b.monitor = monitor
	return b
}

// WithDataHandler sets a handler called for every collection data message,
// after the document store has been updated.
func (b *ClientBuilder) WithDataHandler(handler DataHandler) *ClientBuilder {
	b.dataHandler = handler
	return b
}

// WithStore shares an existing document store. By default each client gets
// its own.
func (b *ClientBuilder) WithStore(store *collection.Store) *ClientBuilder {
	b.store = store
	return b
}

// WithMetrics sets the metrics provider.
func (b *ClientBuilder) WithMetrics(provider o11y.MetricsProvider) *ClientBuilder {
	b.metricsProvider = provider
	return b
}

// WithTracing sets the tracing provider used for method call spans.
func (b *ClientBuilder) WithTracing(provider o11y.TracingProvider) *ClientBuilder {
	b.tracingProvider = provider
	return b
}

// WithObservability applies cfg in one step. Nil providers leave the current
// ones in place. The service name and version are added to every log entry.
func (b *ClientBuilder) WithObservability(cfg o11y.Config) *ClientBuilder {
	if cfg.MetricsProvider != nil {
		b.metricsProvider = cfg.MetricsProvider
	}
	if cfg.TracingProvider != nil {
		b.tracingProvider = cfg.TracingProvider
	}
	b.serviceName = cfg.ServiceName
	b.serviceVersion = cfg.ServiceVersion
	return b
}

// WithHeartbeat makes the client ping the server on a cron schedule, e.g.
// "@every 25s". An empty schedule disables the heartbeat.
func (b *ClientBuilder) WithHeartbeat(schedule string) *ClientBuilder {
	b.heartbeat = schedule
	return b
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.url == "" {
		return fmt.Errorf("URL is required")
	}

	u, err := url.Parse(b.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	if b.heartbeat != "" {
		if _, err := heartbeatParser.Parse(b.heartbeat); err != nil {
			return fmt.Errorf("invalid heartbeat schedule %q: %w", b.heartbeat, err)
		}
	}

	if b.serviceName == "" && b.serviceVersion != "" {
		return fmt.Errorf("service version %q given without a service name", b.serviceVersion)
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	return nil
}

// Build creates the client. It does not connect.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		store = collection.NewStore()
	}

	var heartbeat cron.Schedule
	if b.heartbeat != "" {
		heartbeat, _ = heartbeatParser.Parse(b.heartbeat)
	}

	logger := b.logger
	if b.serviceName != "" {
		logger = logger.With(zap.String("service", b.serviceName))
		if b.serviceVersion != "" {
			logger = logger.With(zap.String("version", b.serviceVersion))
		}
	}

	return &Client{
		url:              b.url,
		logger:           logger,
		dialTimeout:      b.dialTimeout,
		writeChannelSize: b.writeChannelSize,
		readLimit:        b.readLimit,
		headers:          b.headers,
		monitor:          b.monitor,
		dataHandler:      b.dataHandler,
		store:            store,
		metrics:          newClientMetrics(b.metricsProvider),
		tracing:          b.tracingProvider,
		heartbeat:        heartbeat,

		state:         shared.NewAtomic(stateIdle),
		link:          shared.NewAtomic[*link](nil),
		session:       shared.NewAtomic(""),
		lastID:        shared.NewAtomic[uint64](0),
		pending:       shared.NewDict[string, chan callResult](),
		subscriptions: shared.NewDict[string, Subscription](),
		subWaiters:    shared.NewDict[string, chan error](),
	}, nil
}
