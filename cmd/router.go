package main

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"intellidraw/internal/infrastructure/config"
	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
	"intellidraw/internal/interfaces/rest/v1/handler"
	"intellidraw/internal/interfaces/sse"
	"intellidraw/internal/interfaces/websocket"
	"intellidraw/internal/port/inbound"
)

// maxPromptOverhead is the room left in /analyze bodies for the prompt and JSON framing.
const maxPromptOverhead = 64 << 10

func InitRouter(
	cfg *config.Config,
	hubInstance *hub.Hub,
	broadcaster hub.Broadcaster,
	analysisUseCase inbound.AnalysisUseCase,
	log logger.Logger,
) http.Handler {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.CORS))

	rootGroup := router.Group("")

	rootGroup.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the IntelliDraw API"})
	})

	// Health check endpoint
	rootGroup.GET("/hub/status", func(c *gin.Context) {
		isRunning := hubInstance.IsRunning()
		log.Debugf(
			"Hub status check - Running: %v, Connections: %d",
			isRunning,
			hubInstance.ConnectionCount(),
		)
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"hub_running": isRunning,
			"connections": hubInstance.ConnectionCount(),
		})
	})

	analysisHandler := handler.NewAnalysisHandler(
		analysisUseCase,
		maxAnalyzeBodyBytes(cfg.Analysis.MaxImageBytes),
		log,
	)
	rootGroup.POST("/analyze", analysisHandler.Analyze)

	sse.InitSSERouter(log, hubInstance, sse.Options{
		KeepAliveInterval: cfg.SSE.KeepAliveInterval,
		WriteTimeout:      cfg.Hub.SendTimeout,
	}, rootGroup)
	websocket.InitWebSocketRouter(log, hubInstance, broadcaster, websocket.Options{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		Connection:      cfg.WebSocket.Options(),
	}, rootGroup)

	return router
}

// maxAnalyzeBodyBytes is the base64 size of a maxImageBytes image plus overhead.
func maxAnalyzeBodyBytes(maxImageBytes int) int64 {
	if maxImageBytes <= 0 {
		return 0
	}
	return int64((maxImageBytes+2)/3*4) + maxPromptOverhead
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	anyOrigin := slices.Contains(cfg.AllowedOrigins, "*")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case anyOrigin && !cfg.AllowCredentials:
			c.Header("Access-Control-Allow-Origin", "*")
		case anyOrigin || slices.Contains(cfg.AllowedOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			if cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
