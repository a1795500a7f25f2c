package sse

import (
	"github.com/gin-gonic/gin"

	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
)

func InitSSERouter(logger logger.Logger, hubInstance *hub.Hub, opts Options, rg *gin.RouterGroup) {
	sseHandler := NewServerSentEventHandler(hubInstance, opts, logger)

	// Observer stream endpoint
	rg.GET("/sse", sseHandler.Connect)

	apiGroup := rg.Group("/api/v1/sse")
	apiGroup.GET("/connections", sseHandler.GetConnections)
}
