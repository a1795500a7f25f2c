package websocket

import (
	"github.com/gin-gonic/gin"

	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
)

// InitWebSocketRouter initializes WebSocket routes
func InitWebSocketRouter(
	logger logger.Logger,
	hubInstance *hub.Hub,
	broadcaster hub.Broadcaster,
	opts Options,
	rg *gin.RouterGroup,
) {
	wsHandler := NewWebSocketHandler(hubInstance, broadcaster, opts, logger)

	// Drawing session endpoint
	rg.GET("/ws/:clientId", wsHandler.Connect)

	apiGroup := rg.Group("/api/v1/ws")
	apiGroup.GET("/connections", wsHandler.GetConnections)
}
