package hub

import (
	"context"
	"errors"
)

// ErrConnectionClosed is returned by Send once the owner has closed the transport.
var ErrConnectionClosed = errors.New("connection is closed")

// Connection represents one live real-time channel to a single client
// (WebSocket, SSE, ...). The hub holds a non-owning reference: it sends
// through it and compares IDs, but never closes it.
type Connection interface {
	ID() string
	Type() string
	Send(ctx context.Context, message Message) error
}

// RemovalNotifier is implemented by connections whose owner wants to learn
// that the hub has dropped them, so the owner can close its transport.
type RemovalNotifier interface {
	NotifyRemoved()
}

// Broadcaster fans a message out to every live connection.
type Broadcaster interface {
	Broadcast(ctx context.Context, message Message)
}
