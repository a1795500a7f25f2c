package sse

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
)

type Options struct {
	KeepAliveInterval time.Duration
	WriteTimeout      time.Duration
}

// ServerSentEventHandler serves read-only observers of the canvas: every
// broadcast reaches them as a `message` event.
type ServerSentEventHandler struct {
	hub    *hub.Hub
	opts   Options
	logger logger.Logger
}

func NewServerSentEventHandler(hubInstance *hub.Hub, opts Options, logger logger.Logger) *ServerSentEventHandler {
	if opts.KeepAliveInterval <= 0 {
		opts.KeepAliveInterval = 30 * time.Second
	}
	return &ServerSentEventHandler{
		hub:    hubInstance,
		opts:   opts,
		logger: logger.WithField("handler", "sse"),
	}
}

// Connect handles SSE connection requests
func (h *ServerSentEventHandler) Connect(c *gin.Context) {
	h.logger.Info("New SSE connection request")

	if !h.hub.IsRunning() {
		h.logger.Error("Hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	ctx := c.Request.Context()
	conn := hub.NewSSEConnection(ctx, c.Writer, h.opts.WriteTimeout, h.logger)
	defer conn.Close()

	// The greeting goes out before registration so it is always the first event.
	err := conn.WriteEvent(ctx, string(hub.MessageTypeConnected), gin.H{
		"connection_id": conn.ID(),
		"timestamp":     time.Now().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Errorf("Failed to send connected event: %v", err)
		return
	}

	h.hub.Connect(conn)
	defer h.hub.Disconnect(conn)
	h.logger.Infof("SSE connection %s connected", conn.ID())

	ticker := time.NewTicker(h.opts.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.Done():
			h.logger.Infof("SSE connection %s done", conn.ID())
			return
		case <-h.hub.Done():
			h.logger.Infof("Hub stopped, closing SSE connection %s", conn.ID())
			return
		case <-ticker.C:
			err := conn.WriteEvent(ctx, string(hub.MessageTypeKeepAlive), gin.H{
				"timestamp": time.Now().Format(time.RFC3339),
			})
			if err != nil {
				h.logger.Infof("SSE connection %s keepalive failed: %v", conn.ID(), err)
				return
			}
		}
	}
}

// GetConnections returns information about SSE connections
func (h *ServerSentEventHandler) GetConnections(c *gin.Context) {
	connections := h.hub.ConnectionsByType(hub.TypeSSE)
	connectionInfo := make([]gin.H, len(connections))

	for i, conn := range connections {
		connectionInfo[i] = gin.H{
			"id":   conn.ID(),
			"type": conn.Type(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"connections":       connectionInfo,
		"hub_running":       h.hub.IsRunning(),
	})
}
