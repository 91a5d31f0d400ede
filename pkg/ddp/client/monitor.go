package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tsarna/ddp/pkg/ddp/message"
)

var (
	ErrAlreadyStarted      = errors.New("client is already started")
	ErrNotConnected        = errors.New("client is not connected")
	ErrDisconnected        = errors.New("client disconnected")
	ErrWriteQueueFull      = errors.New("write channel is full")
	ErrSubscriptionStopped = errors.New("subscription stopped by server")
	ErrUnknownSubscription = errors.New("unknown subscription")
)

// VersionMismatchError is returned by Connect when the server rejects every
// protocol version the client offered.
type VersionMismatchError struct {
	Offered []string
	Server  string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("server rejected protocol versions [%s], suggests %q",
		strings.Join(e.Offered, ", "), e.Server)
}

// Monitor receives client lifecycle notifications. Reconnection and
// re-authentication policies are built on top of it. OnAuthError runs on a
// goroutine of its own, so it may call the client, including Disconnect.
type Monitor interface {
	OnConnect(ctx context.Context, client *Client)
	// OnDisconnect is called after the client is torn down. err is nil for
	// a disconnect requested through Disconnect.
	OnDisconnect(ctx context.Context, client *Client, err error)
	// OnAuthError is called for every server error with a 401 or 403 code.
	OnAuthError(ctx context.Context, client *Client, err *message.ProtocolError)
}

// DataHandler receives collection data messages (added, changed, removed,
// addedBefore, movedBefore) on the read goroutine, after they are applied to
// the store. No other frame is read until OnData returns, so it must not wait
// on the client: a Call or Subscribe made from OnData never completes. It may
// call Disconnect. Wrap a handler that needs the client in
// handlers.AsyncDataHandler.
type DataHandler interface {
	OnData(ctx context.Context, msg message.Message) error
}

// DataHandlerFunc adapts a function to DataHandler.
type DataHandlerFunc func(ctx context.Context, msg message.Message) error

func (f DataHandlerFunc) OnData(ctx context.Context, msg message.Message) error {
	return f(ctx, msg)
}
