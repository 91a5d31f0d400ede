// Package client is a DDP client over a WebSocket connection.
//
// It sends the connect handshake, answers server pings, matches method
// results and subscription readiness to their callers, and keeps a cache of
// published documents. Every piece of state shared between the read goroutine
// and callers lives in a shared.Atomic or shared.Dict. Reconnection is left to
// the caller, using Monitor.
package client

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/robfig/cron/v3"
	"github.com/tsarna/ddp/pkg/ddp/collection"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/o11y"
	"github.com/tsarna/ddp/pkg/ddp/shared"
	"go.uber.org/zap"
)

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
	stateClosing
)

// Subscription is an active or pending subscription.
type Subscription struct {
	ID     string
	Name   string
	Params []any
	Ready  bool
}

type callResult struct {
	value any
	err   error
}

// link is one live connection and the goroutines serving it.
type link struct {
	conn      *websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc
	writes    chan []byte
	handshake chan message.Message
	writer    sync.WaitGroup
	reader    chan struct{} // closed when the read loop exits

	// set while the read loop is inside the data handler
	dispatching *shared.Atomic[bool]
}

// Client is a DDP client. Build one with NewClient.
type Client struct {
	// Configuration
	url              string
	logger           *zap.Logger
	dialTimeout      time.Duration
	writeChannelSize int
	readLimit        int64
	headers          map[string][]string
	monitor          Monitor
	dataHandler      DataHandler
	store            *collection.Store
	metrics          *clientMetrics
	tracing          o11y.TracingProvider
	heartbeat        cron.Schedule

	// Shared state
	state         *shared.Atomic[connState]
	link          *shared.Atomic[*link]
	session       *shared.Atomic[string]
	lastID        *shared.Atomic[uint64]
	pending       *shared.Dict[string, chan callResult]
	subscriptions *shared.Dict[string, Subscription]
	subWaiters    *shared.Dict[string, chan error]
}

// Connect dials the server and completes the connect handshake. The returned
// error is a *VersionMismatchError if the server refuses the protocol.
func (c *Client) Connect(ctx context.Context) error {
	if !c.transition(stateIdle, stateConnecting) {
		return ErrAlreadyStarted
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, c.dialTimeout)
	defer dialCancel()

	dialOptions := &websocket.DialOptions{}
	if c.headers != nil {
		dialOptions.HTTPHeader = make(map[string][]string)
		for key, values := range c.headers {
			dialOptions.HTTPHeader[key] = values
		}
	}

	conn, _, err := websocket.Dial(dialCtx, c.url, dialOptions)
	c.metrics.recordConnect(ctx, err)
	if err != nil {
		c.state.Set(stateIdle)
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	conn.SetReadLimit(c.readLimit)

	linkCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l := &link{
		conn:      conn,
		ctx:       linkCtx,
		cancel:    cancel,
		writes:    make(chan []byte, c.writeChannelSize),
		handshake: make(chan message.Message, 1),
		reader:    make(chan struct{}),

		dispatching: shared.NewAtomic(false),
	}
	c.link.Set(l)

	l.writer.Add(1)
	go c.readLoop(l)
	go c.writeLoop(l)

	if err := c.send(dialCtx, l, message.ConnectFrame("")); err != nil {
		c.abort(l)
		return fmt.Errorf("failed to send connect: %w", err)
	}

	select {
	case msg := <-l.handshake:
		if msg.Kind() == message.KindFailed {
			c.abort(l)
			return &VersionMismatchError{Offered: message.SupportedVersions, Server: msg.Version()}
		}
	case <-dialCtx.Done():
		c.abort(l)
		return fmt.Errorf("connect handshake: %w", dialCtx.Err())
	case <-l.ctx.Done():
		return ErrDisconnected
	}

	if !c.transition(stateConnecting, stateConnected) {
		return ErrDisconnected
	}
	c.startHeartbeat(l)

	c.logger.Info("DDP client connected",
		zap.String("url", c.url),
		zap.String("session", c.session.Get()))

	if c.monitor != nil {
		c.monitor.OnConnect(ctx, c)
	}

	return nil
}

// Disconnect closes the connection. Calls and subscriptions still waiting
// fail with ErrDisconnected. Cached documents are kept until the next
// session starts.
func (c *Client) Disconnect() error {
	l := c.link.Get()
	if l == nil || !(c.transition(stateConnected, stateClosing) || c.transition(stateConnecting, stateClosing)) {
		return nil
	}

	c.logger.Info("Disconnecting DDP client")
	c.teardown(l, websocket.StatusNormalClosure, "client disconnect")
	c.logger.Info("DDP client disconnected")

	if c.monitor != nil {
		c.monitor.OnDisconnect(context.Background(), c, nil)
	}
	return nil
}

// Session returns the id of the current (or last) session.
func (c *Client) Session() string {
	return c.session.Get()
}

// Store returns the document cache.
func (c *Client) Store() *collection.Store {
	return c.store
}

// Subscriptions returns a snapshot of the client's subscriptions keyed by id.
func (c *Client) Subscriptions() map[string]Subscription {
	return c.subscriptions.Copy()
}

// Call invokes a remote method and waits for its result. A method that fails
// on the server returns a *message.ProtocolError. If ctx ends first the late
// result is discarded.
func (c *Client) Call(ctx context.Context, method string, params ...any) (result any, err error) {
	l, err := c.connected()
	if err != nil {
		return nil, err
	}

	ctx, span := o11y.StartSpan(ctx, c.tracing, "ddp.call", o11y.Label{Key: "method", Value: method})
	defer func() {
		if err != nil {
			span.SetStatus(o11y.SpanStatusError, err.Error())
		} else {
			span.SetStatus(o11y.SpanStatusOK, "")
		}
		span.End()
	}()

	id := c.nextID()
	resultCh := make(chan callResult, 1)
	c.pending.Set(id, resultCh)

	started := time.Now()
	c.metrics.callStarted(ctx)
	defer func() { c.metrics.callFinished(ctx, method, started, err) }()

	if err := c.send(ctx, l, message.MethodFrame(id, method, params, nil)); err != nil {
		c.pending.Remove(id)
		return nil, err
	}

	select {
	case res := <-resultCh:
		return res.value, res.err
	case <-ctx.Done():
		c.pending.Remove(id)
		return nil, ctx.Err()
	case <-l.ctx.Done():
		c.pending.Remove(id)
		return nil, ErrDisconnected
	}
}

// Subscribe starts a subscription and waits until the server reports it
// ready. It returns the subscription id. A subscription the server refuses
// returns its *message.ProtocolError, or ErrSubscriptionStopped.
func (c *Client) Subscribe(ctx context.Context, name string, params ...any) (id string, err error) {
	l, err := c.connected()
	if err != nil {
		return "", err
	}
	defer func() { c.metrics.recordSubscription(ctx, name, err) }()

	id = c.nextID()
	readyCh := make(chan error, 1)
	c.subscriptions.Set(id, Subscription{ID: id, Name: name, Params: params})
	c.subWaiters.Set(id, readyCh)

	if err := c.send(ctx, l, message.SubFrame(id, name, params)); err != nil {
		c.subWaiters.Remove(id)
		c.dropSubscription(ctx, id)
		return "", err
	}

	select {
	case err := <-readyCh:
		if err != nil {
			return "", err
		}
		return id, nil
	case <-ctx.Done():
		c.subWaiters.Remove(id)
		if _, ok := c.dropSubscription(ctx, id); ok {
			c.enqueue(l, message.UnsubFrame(id))
		}
		return "", ctx.Err()
	case <-l.ctx.Done():
		return "", ErrDisconnected
	}
}

// Unsubscribe stops a subscription. It does not wait for the server to
// confirm.
func (c *Client) Unsubscribe(ctx context.Context, id string) error {
	l, err := c.connected()
	if err != nil {
		return err
	}

	if _, ok := c.dropSubscription(ctx, id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, id)
	}
	if readyCh, ok := c.subWaiters.Take(id); ok {
		readyCh <- ErrSubscriptionStopped
	}

	return c.send(ctx, l, message.UnsubFrame(id))
}

// dropSubscription forgets a subscription and keeps the active gauge in step.
func (c *Client) dropSubscription(ctx context.Context, id string) (Subscription, bool) {
	sub, ok := c.subscriptions.Take(id)
	if ok && sub.Ready {
		c.metrics.subscriptionActive(ctx, -1)
	}
	return sub, ok
}

func (c *Client) connected() (*link, error) {
	l := c.link.Get()
	if l == nil || c.state.Get() != stateConnected {
		return nil, ErrNotConnected
	}
	return l, nil
}

func (c *Client) transition(from, to connState) bool {
	ok := false
	c.state.Modify(func(current connState) connState {
		if current != from {
			return current
		}
		ok = true
		return to
	})
	return ok
}

func (c *Client) nextID() string {
	return strconv.FormatUint(c.lastID.Modify(func(v uint64) uint64 { return v + 1 })+1, 10)
}

// send queues a frame, waiting for room in the write channel.
func (c *Client) send(ctx context.Context, l *link, frame message.Outbound) error {
	data, err := frame.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", frame.Msg, err)
	}

	select {
	case l.writes <- data:
		c.metrics.recordSent(ctx, frame.Msg)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrDisconnected
	}
}

// enqueue queues a frame without blocking; it is used from the read loop.
func (c *Client) enqueue(l *link, frame message.Outbound) {
	data, err := frame.Marshal()
	if err != nil {
		c.logger.Error("Failed to marshal frame", zap.String("msg", frame.Msg), zap.Error(err))
		return
	}

	select {
	case l.writes <- data:
		c.metrics.recordSent(l.ctx, frame.Msg)
	case <-l.ctx.Done():
	default:
		c.logger.Warn("Dropping frame", zap.String("msg", frame.Msg), zap.Error(ErrWriteQueueFull))
	}
}

// abort tears down a connection whose handshake did not complete.
func (c *Client) abort(l *link) {
	if c.transition(stateConnecting, stateClosing) {
		c.teardown(l, websocket.StatusNormalClosure, "connect aborted")
	}
}

// connectionLost tears down after a transport failure. It runs the teardown
// on its own goroutine because it is called from the loops teardown waits for.
func (c *Client) connectionLost(l *link, err error) {
	if !(c.transition(stateConnected, stateClosing) || c.transition(stateConnecting, stateClosing)) {
		return
	}

	go func() {
		c.teardown(l, websocket.StatusInternalError, "connection error")

		if c.monitor != nil {
			c.monitor.OnDisconnect(context.Background(), c, err)
		}
	}()
}

// teardown closes the connection, waits for both loops and fails everything
// still waiting on it. The caller must have moved the state to closing.
//
// When called from the data handler it runs on the read goroutine, so it does
// not wait for the read loop; the loop exits once the handler returns.
func (c *Client) teardown(l *link, status websocket.StatusCode, reason string) {
	c.link.Set(nil)

	if err := l.conn.Close(status, reason); err != nil {
		c.logger.Debug("WebSocket close", zap.Error(err))
	}
	l.cancel()
	l.writer.Wait()
	if !l.dispatching.Get() {
		<-l.reader
	}

	for _, id := range c.pending.Keys() {
		if ch, ok := c.pending.Take(id); ok {
			ch <- callResult{err: ErrDisconnected}
		}
	}
	for _, id := range c.subWaiters.Keys() {
		if ch, ok := c.subWaiters.Take(id); ok {
			ch <- ErrDisconnected
		}
	}
	for _, id := range c.subscriptions.Keys() {
		c.dropSubscription(l.ctx, id)
	}

	c.state.Set(stateIdle)
}

func (c *Client) readLoop(l *link) {
	defer close(l.reader)

	for {
		_, data, err := l.conn.Read(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil && c.state.Get() != stateClosing {
				c.logger.Error("Failed to read from WebSocket", zap.Error(err))
				c.connectionLost(l, err)
			}
			return
		}

		c.handleFrame(l, string(data))
	}
}

func (c *Client) writeLoop(l *link) {
	defer l.writer.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		case data := <-l.writes:
			if err := l.conn.Write(l.ctx, websocket.MessageText, data); err != nil {
				if l.ctx.Err() == nil && c.state.Get() != stateClosing {
					c.logger.Error("Failed to write to WebSocket", zap.Error(err))
					c.connectionLost(l, err)
				}
				return
			}
		}
	}
}

// handleFrame decodes and dispatches one inbound frame. It runs on the read
// goroutine, so frames are handled in arrival order. Monitor callbacks are
// made on their own goroutine so they may use the client.
func (c *Client) handleFrame(l *link, raw string) {
	msg := message.Decode(raw)
	c.metrics.recordFrame(l.ctx, msg)

	if pe := msg.ProtocolError(); pe.IsAuthError() {
		c.metrics.recordAuthError(l.ctx)
		if c.monitor != nil {
			go c.monitor.OnAuthError(l.ctx, c, pe)
		}
	}

	if msg.Kind().IsData() {
		c.handleData(l, msg)
		return
	}

	switch kind := msg.Kind(); kind {
	case message.KindConnected:
		c.session.Set(msg.Session())
		c.store.Reset()
		c.deliverHandshake(l, msg)
	case message.KindFailed:
		c.deliverHandshake(l, msg)
	case message.KindPing:
		c.enqueue(l, message.PongFrame(msg.ID()))
	case message.KindPong:
		c.logger.Debug("Pong received", zap.String("id", msg.ID()))
	case message.KindResult:
		c.handleResult(msg)
	case message.KindUpdated:
		c.logger.Debug("Method writes visible", zap.Strings("methods", msg.Methods()))
	case message.KindReady:
		c.handleReady(l, msg)
	case message.KindNoSub:
		c.handleNoSub(l, msg)
	case message.KindError:
		c.logger.Error("Server reported an error",
			zap.String("reason", msg.Reason()),
			zap.String("details", msg.Details()),
			zap.String("offendingMessage", msg.OffendingMessage()))
	default:
		c.logger.Debug("Unhandled frame", zap.String("frame", raw))
	}
}

func (c *Client) deliverHandshake(l *link, msg message.Message) {
	select {
	case l.handshake <- msg:
	default:
		c.logger.Warn("Unexpected handshake frame", zap.Stringer("kind", msg.Kind()))
	}
}

func (c *Client) handleResult(msg message.Message) {
	resultCh, ok := c.pending.Take(msg.ID())
	if !ok {
		c.logger.Debug("Result for unknown method call", zap.String("id", msg.ID()))
		return
	}

	if pe := msg.ProtocolError(); pe != nil {
		resultCh <- callResult{err: pe}
		return
	}
	resultCh <- callResult{value: msg.Result()}
}

func (c *Client) handleReady(l *link, msg message.Message) {
	for _, id := range msg.Subs() {
		becameReady := false
		c.subscriptions.Update(id, func(sub Subscription, exists bool) (Subscription, bool) {
			becameReady = exists && !sub.Ready
			sub.Ready = true
			return sub, exists
		})
		if becameReady {
			c.metrics.subscriptionActive(l.ctx, 1)
		}
		if readyCh, ok := c.subWaiters.Take(id); ok {
			readyCh <- nil
		}
	}
}

func (c *Client) handleNoSub(l *link, msg message.Message) {
	id := msg.ID()
	sub, existed := c.dropSubscription(l.ctx, id)

	var err error = ErrSubscriptionStopped
	if pe := msg.ProtocolError(); pe != nil {
		err = pe
	}

	if readyCh, ok := c.subWaiters.Take(id); ok {
		readyCh <- err
		return
	}

	if existed {
		c.logger.Warn("Subscription stopped by server",
			zap.String("id", id),
			zap.String("name", sub.Name),
			zap.Error(err))
	}
}

func (c *Client) handleData(l *link, msg message.Message) {
	c.store.Apply(msg)

	if c.dataHandler == nil {
		return
	}

	l.dispatching.Set(true)
	err := c.dataHandler.OnData(l.ctx, msg)
	l.dispatching.Set(false)
	if err != nil {
		c.logger.Warn("Data handler error",
			zap.Stringer("kind", msg.Kind()),
			zap.String("collection", msg.Collection()),
			zap.String("id", msg.ID()),
			zap.Error(err))
	}
}
