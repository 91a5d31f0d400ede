// Package handlers provides client.DataHandler wrappers.
package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/message"
)

var (
	ErrQueueFull     = errors.New("handler queue is full")
	ErrHandlerClosed = errors.New("handler is closed")
)

// DefaultQueueSize is used when NewAsyncDataHandler is given a non-positive size.
const DefaultQueueSize = 100

type queuedMessage struct {
	ctx context.Context
	msg message.Message
}

// AsyncDataHandler hands data messages to another handler on its own
// goroutine, so a slow handler does not hold up the client's read loop.
// Messages are delivered in the order they were queued.
//
//	async := handlers.NewAsyncDataHandler(myHandler, 100).Start()
//	defer async.Close()
//	c, err := client.NewClient().WithURL(url).WithDataHandler(async).Build()
//
// The wrapped handler sees the document cache as it is when the message is
// dequeued, which may already include later messages.
type AsyncDataHandler struct {
	wrapped   client.DataHandler
	queue     chan queuedMessage
	done      chan struct{}
	mu        sync.RWMutex // held for writing while done is closed
	wg        sync.WaitGroup
	closeOnce sync.Once
	onError   func(message.Message, error)
}

// NewAsyncDataHandler creates a handler with a queue of queueSize messages.
// Call Start before use and Close when done.
func NewAsyncDataHandler(wrapped client.DataHandler, queueSize int) *AsyncDataHandler {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &AsyncDataHandler{
		wrapped: wrapped,
		queue:   make(chan queuedMessage, queueSize),
		done:    make(chan struct{}),
	}
}

// WithErrorHandler sets a function called with errors from the wrapped
// handler, which otherwise are dropped. Must be called before Start.
func (a *AsyncDataHandler) WithErrorHandler(fn func(message.Message, error)) *AsyncDataHandler {
	a.onError = fn
	return a
}

// Start begins processing the queue in a background goroutine.
func (a *AsyncDataHandler) Start() *AsyncDataHandler {
	a.wg.Add(1)
	go a.processQueue()
	return a
}

// OnData queues msg and returns immediately. A nil return means the wrapped
// handler will see msg, even if Close is called concurrently.
func (a *AsyncDataHandler) OnData(ctx context.Context, msg message.Message) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.IsClosed() {
		return ErrHandlerClosed
	}

	select {
	case a.queue <- queuedMessage{ctx: ctx, msg: msg}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *AsyncDataHandler) processQueue() {
	defer a.wg.Done()

	for {
		select {
		case m := <-a.queue:
			a.process(m)
		case <-a.done:
			a.drainQueue()
			return
		}
	}
}

func (a *AsyncDataHandler) drainQueue() {
	for {
		select {
		case m := <-a.queue:
			a.process(m)
		default:
			return
		}
	}
}

func (a *AsyncDataHandler) process(m queuedMessage) {
	if err := a.wrapped.OnData(m.ctx, m.msg); err != nil && a.onError != nil {
		a.onError(m.msg, err)
	}
}

// Close stops accepting messages, delivers what is still queued and waits
// for the background goroutine to exit.
func (a *AsyncDataHandler) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		close(a.done)
		a.mu.Unlock()
		a.wg.Wait()
	})
	return nil
}

// QueueSize returns the number of messages waiting.
func (a *AsyncDataHandler) QueueSize() int {
	return len(a.queue)
}

// QueueCapacity returns the maximum number of messages that can wait.
func (a *AsyncDataHandler) QueueCapacity() int {
	return cap(a.queue)
}

// IsClosed reports whether Close has been called.
func (a *AsyncDataHandler) IsClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}
