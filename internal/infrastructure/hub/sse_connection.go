package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/google/uuid"

	"intellidraw/internal/infrastructure/logger"
)

const (
	TypeSSE = "sse"

	sseMessageEvent = "message"
)

// flushWriter is the part of http.ResponseWriter an SSE stream needs.
type flushWriter interface {
	http.ResponseWriter
	http.Flusher
}

// SSEConnection implements the Connection interface for a read-only
// Server-Sent Events stream. Each broadcast payload becomes one `message`
// event.
type SSEConnection struct {
	id     string
	writer flushWriter
	rc     *http.ResponseController

	writeMu      sync.Mutex
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	logger logger.Logger
}

var (
	_ Connection      = (*SSEConnection)(nil)
	_ RemovalNotifier = (*SSEConnection)(nil)
)

// NewSSEConnection creates a new SSE connection and writes the stream headers.
func NewSSEConnection(
	ctx context.Context,
	w flushWriter,
	writeTimeout time.Duration,
	logger logger.Logger,
) *SSEConnection {
	rctx, cancel := context.WithCancel(ctx)
	id := "sse-" + uuid.NewString()
	if writeTimeout <= 0 {
		writeTimeout = defaultSendTimeout
	}

	conn := &SSEConnection{
		id:           id,
		writer:       w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
		ctx:          rctx,
		cancel:       cancel,
		logger:       logger.WithField("connection_id", id),
	}

	conn.setupSSEHeaders()
	return conn
}

// ID returns unique connection identifier
func (c *SSEConnection) ID() string {
	return c.id
}

// Type returns the connection type
func (c *SSEConnection) Type() string {
	return TypeSSE
}

// Send emits message as the data of a `message` event.
func (c *SSEConnection) Send(ctx context.Context, message Message) error {
	return c.WriteEvent(ctx, sseMessageEvent, message.String())
}

// WriteEvent writes one SSE event and flushes it.
func (c *SSEConnection) WriteEvent(ctx context.Context, event string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// Checked under writeMu: once Close returns the response may be gone.
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	// Not every writer supports deadlines; the write still goes ahead.
	_ = c.rc.SetWriteDeadline(deadline)
	defer c.rc.SetWriteDeadline(time.Time{}) //nolint:errcheck

	if err := sse.Encode(c.writer, sse.Event{Event: event, Data: data}); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	c.writer.Flush()
	return nil
}

// NotifyRemoved is called by the hub once the connection leaves the registry.
func (c *SSEConnection) NotifyRemoved() {
	c.cancel()
}

// Done is closed when the request ends, the hub drops the connection or it is closed.
func (c *SSEConnection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close marks the stream closed, waiting for an in-flight write to finish.
// The HTTP handler returning ends the response.
func (c *SSEConnection) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()

	c.logger.Info("SSE connection closed")
	return nil
}

// IsClosed returns true if connection is closed
func (c *SSEConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// setupSSEHeaders sets up the proper headers for SSE connection
func (c *SSEConnection) setupSSEHeaders() {
	h := c.writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // For nginx
}
