package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"intellidraw/internal/infrastructure/logger"
)

const TypeWebSocket = "websocket"

// WebSocketOptions holds per-connection transport settings.
type WebSocketOptions struct {
	WriteTimeout    time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration // must be less than PongWait
	MaxMessageBytes int64
}

func DefaultWebSocketOptions() WebSocketOptions {
	return WebSocketOptions{
		WriteTimeout:    10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageBytes: 1 << 20,
	}
}

// withDefaults fills zero fields from DefaultWebSocketOptions.
func (o WebSocketOptions) withDefaults() WebSocketOptions {
	d := DefaultWebSocketOptions()
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	return o
}

// WebSocketConnection implements the Connection interface for WebSocket
// connections. It is owned by the session that upgraded it: only the session
// reads from it and closes it, while the hub only sends.
type WebSocketConnection struct {
	id       string
	clientID string
	conn     *websocket.Conn
	opts     WebSocketOptions

	// gorilla allows one concurrent writer; concurrent broadcasts serialize here.
	writeMu sync.Mutex

	// ctx is cancelled when the hub removes the connection or it is closed.
	ctx    context.Context
	cancel context.CancelFunc

	closed    bool
	closedMu  sync.RWMutex
	closeOnce sync.Once

	logger logger.Logger

	lastActivity time.Time
	activityMu   sync.RWMutex
}

var (
	_ Connection      = (*WebSocketConnection)(nil)
	_ RemovalNotifier = (*WebSocketConnection)(nil)
)

// NewWebSocketConnection wraps an upgraded socket and starts its ping loop.
func NewWebSocketConnection(
	clientID string,
	conn *websocket.Conn,
	opts WebSocketOptions,
	logger logger.Logger,
) *WebSocketConnection {
	ctx, cancel := context.WithCancel(context.Background())
	id := "ws-" + uuid.NewString()

	wsConn := &WebSocketConnection{
		id:       id,
		clientID: clientID,
		conn:     conn,
		opts:     opts.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		logger: logger.WithFields(map[string]any{
			"connection_id": id,
			"client_id":     clientID,
		}),
		lastActivity: time.Now(),
	}

	wsConn.setupWebSocket()
	go wsConn.keepAlive()

	return wsConn
}

// ID returns unique connection identifier
func (c *WebSocketConnection) ID() string {
	return c.id
}

// Type returns the connection type
func (c *WebSocketConnection) Type() string {
	return TypeWebSocket
}

// ClientID is the identifier the client put in the session path.
func (c *WebSocketConnection) ClientID() string {
	return c.clientID
}

// Send writes message as a single text frame. It blocks until the frame is
// flushed, the write deadline passes or ctx expires.
func (c *WebSocketConnection) Send(ctx context.Context, message Message) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	c.updateActivity()
	return nil
}

// ReadMessage blocks until the next frame from the client arrives.
func (c *WebSocketConnection) ReadMessage() (int, []byte, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err == nil {
		c.updateActivity()
	}
	return messageType, data, err
}

// NotifyRemoved is called by the hub once the connection leaves the registry.
func (c *WebSocketConnection) NotifyRemoved() {
	c.cancel()
}

// Done is closed when the hub has removed the connection or it was closed.
func (c *WebSocketConnection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close sends a close frame and releases the socket. Safe to call repeatedly.
func (c *WebSocketConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()
		c.cancel()

		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.opts.WriteTimeout),
		)
		err = c.conn.Close()

		c.logger.Info("WebSocket connection closed")
	})
	return err
}

// IsClosed returns true if connection is closed
func (c *WebSocketConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// LastActivity is the time of the last frame sent or received.
func (c *WebSocketConnection) LastActivity() time.Time {
	c.activityMu.RLock()
	defer c.activityMu.RUnlock()
	return c.lastActivity
}

// setupWebSocket configures WebSocket connection settings
func (c *WebSocketConnection) setupWebSocket() {
	if c.opts.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.updateActivity()
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
}

// keepAlive pings the client so that dead peers fail the read deadline.
func (c *WebSocketConnection) keepAlive() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// WriteControl may run concurrently with WriteMessage.
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			if err != nil {
				c.logger.Debugf("Failed to send ping: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *WebSocketConnection) updateActivity() {
	c.activityMu.Lock()
	c.lastActivity = time.Now()
	c.activityMu.Unlock()
}
