package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"intellidraw/internal/infrastructure/logger"
)

const defaultSendTimeout = 10 * time.Second

// Options tunes broadcast delivery.
type Options struct {
	// SendTimeout bounds a single delivery attempt to one connection.
	SendTimeout time.Duration
	// MaxConcurrentSends limits in-flight sends per broadcast; 0 means one
	// goroutine per connection.
	MaxConcurrentSends int
}

// Hub owns the connection registry and is the only entry point for
// connecting, disconnecting and fanning messages out.
type Hub struct {
	registry *registry
	opts     Options

	started   atomic.Bool
	running   bool
	runningMu sync.RWMutex

	logger logger.Logger

	// done is closed by Stop; sessions watch it to close their transports.
	done     chan struct{}
	stopOnce sync.Once
}

var _ Broadcaster = (*Hub)(nil)

// New creates a new Hub instance. It must be started before use.
func New(logger logger.Logger, opts Options) *Hub {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.MaxConcurrentSends < 0 {
		opts.MaxConcurrentSends = 0
	}

	return &Hub{
		registry: newRegistry(),
		opts:     opts,
		logger:   logger.WithField("component", "hub"),
		done:     make(chan struct{}),
	}
}

// Start marks the hub as accepting connections.
func (h *Hub) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.running {
		return fmt.Errorf("hub is already running")
	}
	if h.started.Load() {
		return fmt.Errorf("hub cannot be restarted after stop")
	}

	h.started.Store(true)
	h.running = true

	h.logger.Info("Hub started successfully")
	return nil
}

// Stop empties the registry and closes Done. Transports are left to their
// owning sessions, which are notified through RemovalNotifier and Done.
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	if !h.running {
		h.runningMu.Unlock()
		return nil
	}
	h.running = false
	h.runningMu.Unlock()

	h.stopOnce.Do(func() { close(h.done) })

	removed := h.registry.drain()
	for _, conn := range removed {
		notifyRemoved(conn)
	}

	h.logger.Infof("Hub stopped successfully, released %d connections", len(removed))
	return nil
}

// IsRunning returns true if the hub is currently running
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// Done is closed once the hub has been stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Connect registers conn; it becomes eligible for every later broadcast.
// Registering the same connection twice is a no-op.
func (h *Hub) Connect(conn Connection) {
	h.mustBeStarted("Connect")

	// Holding the read lock orders the add before Stop's drain.
	h.runningMu.RLock()
	running := h.running
	added := running && h.registry.add(conn)
	h.runningMu.RUnlock()

	if !running {
		h.logger.Warnf("Ignoring connection %s: hub is stopped", conn.ID())
		notifyRemoved(conn)
		return
	}
	if added {
		h.logger.Infof("Connection %s registered (type: %s)", conn.ID(), conn.Type())
	}
}

// Disconnect unregisters conn. Unknown connections are ignored, so it is
// safe to call from any error path, including mid-broadcast.
func (h *Hub) Disconnect(conn Connection) {
	h.mustBeStarted("Disconnect")

	if !h.registry.remove(conn) {
		return
	}
	notifyRemoved(conn)
	h.logger.Infof("Connection %s unregistered", conn.ID())
}

// Broadcast delivers message to every connection registered at the time of
// the call, the producer's own connection included. Each delivery is
// independent: a failed send evicts that connection and never reaches the
// caller.
func (h *Hub) Broadcast(ctx context.Context, message Message) {
	h.mustBeStarted("Broadcast")

	if !h.IsRunning() {
		return
	}

	targets := h.registry.snapshot()
	if len(targets) == 0 {
		h.logger.Debug("Broadcast skipped, no connections")
		return
	}

	var eg errgroup.Group
	if h.opts.MaxConcurrentSends > 0 {
		eg.SetLimit(h.opts.MaxConcurrentSends)
	}

	var dropped atomic.Int32
	for _, conn := range targets {
		eg.Go(func() error {
			if !h.deliver(ctx, conn, message) {
				dropped.Add(1)
			}
			return nil
		})
	}
	_ = eg.Wait()

	h.logger.Debugf(
		"Broadcasted %d bytes to %d connections (%d dropped)",
		len(message), len(targets), dropped.Load(),
	)
}

// deliver sends to one connection and reports whether it is still registered.
func (h *Hub) deliver(ctx context.Context, conn Connection, message Message) bool {
	sendCtx, cancel := context.WithTimeout(ctx, h.opts.SendTimeout)
	defer cancel()

	err := conn.Send(sendCtx, message)
	if err == nil {
		return true
	}

	// The broadcaster gave up; the peer is not to blame.
	if ctx.Err() != nil {
		h.logger.Debugf("Broadcast to connection %s abandoned: %v", conn.ID(), ctx.Err())
		return true
	}

	h.logger.Warnf("Failed to send broadcast to connection %s, removing it: %v", conn.ID(), err)
	h.Disconnect(conn)
	return false
}

// GetConnection returns a connection by ID
func (h *Hub) GetConnection(connID string) (Connection, bool) {
	return h.registry.get(connID)
}

// Connections returns a point-in-time copy of the registered connections.
func (h *Hub) Connections() []Connection {
	return h.registry.snapshot()
}

// ConnectionsByType returns connections of a specific type
func (h *Hub) ConnectionsByType(connType string) []Connection {
	var connections []Connection
	for _, conn := range h.registry.snapshot() {
		if conn.Type() == connType {
			connections = append(connections, conn)
		}
	}
	return connections
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	return h.registry.len()
}

// mustBeStarted panics when the hub is used before Start.
func (h *Hub) mustBeStarted(op string) {
	if h == nil || !h.started.Load() {
		panic(fmt.Sprintf("hub: %s called before Start", op))
	}
}

func notifyRemoved(conn Connection) {
	if n, ok := conn.(RemovalNotifier); ok {
		n.NotifyRemoved()
	}
}
