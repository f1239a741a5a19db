package channel

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotConnected  = errors.New("channel not connected")
	ErrConnectFailed = errors.New("connection attempts exhausted")
)

// Lifecycle signals. The transport's own connect/disconnect/error noise
// is normalized into these and dispatched through the same On surface as
// server events, so callers subscribe to exactly one vocabulary.
const (
	SignalConnected      = "connected"
	SignalConnectionLost = "connection_lost"
	SignalSocketError    = "socket_error"
)

// Handler receives the raw JSON payload of one event. Handlers for the
// same event fire in subscription order; ordering across different event
// names is not guaranteed.
type Handler func(data json.RawMessage)

// Channel is the typed publish/subscribe surface over the realtime
// transport. It is injected everywhere a transport is needed so tests
// can substitute an in-memory fake.
//
// Nothing is buffered while disconnected: events that occur while a
// client is offline are lost and must be recovered by a fresh REST
// snapshot after reconnecting.
type Channel interface {
	// Connect blocks until the transport reports connected, or fails
	// after a bounded number of attempts.
	Connect(ctx context.Context) error
	Disconnect() error
	// Emit fails fast with ErrNotConnected when offline.
	Emit(event string, payload any) error
	// On registers a handler and returns its unsubscribe func.
	On(event string, h Handler) (off func())
}
