package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
)

// Options configures the upgrade and the resulting connections.
type Options struct {
	ReadBufferSize  int
	WriteBufferSize int
	Connection      hub.WebSocketOptions
}

// WebSocketHandler runs one drawing session per upgraded connection: every
// text frame a client sends is broadcast to all sessions, itself included.
type WebSocketHandler struct {
	hub         *hub.Hub
	broadcaster hub.Broadcaster
	opts        Options
	logger      logger.Logger
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler instance. Client
// frames go to broadcaster, which is either the hub or a relay in front of it.
func NewWebSocketHandler(
	hubInstance *hub.Hub,
	broadcaster hub.Broadcaster,
	opts Options,
	logger logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hubInstance,
		broadcaster: broadcaster,
		opts:        opts,
		logger:      logger.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				// Any canvas frontend may join.
				return true
			},
		},
	}
}

// Connect upgrades the request and relays client frames until the client
// leaves, the hub evicts the connection or the hub stops.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	clientID := c.Param("clientId")
	log := h.logger.WithField("client_id", clientID)
	log.Info("New WebSocket connection request")

	if !h.hub.IsRunning() {
		log.Error("Hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	// On failure the upgrader has already written an HTTP error.
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := hub.NewWebSocketConnection(clientID, conn, h.opts.Connection, h.logger)
	defer wsConn.Close()

	h.hub.Connect(wsConn)
	defer h.hub.Disconnect(wsConn)

	log.Infof("WebSocket connection %s connected", wsConn.ID())

	// Closing the socket unblocks the read loop below.
	go func() {
		select {
		case <-wsConn.Done():
		case <-h.hub.Done():
		}
		_ = wsConn.Close()
	}()

	h.readLoop(wsConn, log)
	log.Infof("WebSocket connection %s disconnected", wsConn.ID())
}

func (h *WebSocketHandler) readLoop(conn *hub.WebSocketConnection, log logger.Logger) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !conn.IsClosed() {
				log.Warnf("WebSocket read error: %v", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			log.Debugf("Ignoring non-text frame of type %d", messageType)
			continue
		}

		// The sender only waits for delivery; its own disconnect must not
		// abort the fan-out to others.
		h.broadcaster.Broadcast(context.Background(), hub.Message(data))
	}
}

// GetConnections returns information about WebSocket connections
func (h *WebSocketHandler) GetConnections(c *gin.Context) {
	connections := h.hub.ConnectionsByType(hub.TypeWebSocket)
	connectionInfo := make([]gin.H, len(connections))

	for i, conn := range connections {
		info := gin.H{
			"id":   conn.ID(),
			"type": conn.Type(),
		}
		if ws, ok := conn.(*hub.WebSocketConnection); ok {
			info["client_id"] = ws.ClientID()
			info["last_activity"] = ws.LastActivity()
		}
		connectionInfo[i] = info
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"connections":       connectionInfo,
		"hub_running":       h.hub.IsRunning(),
	})
}
