package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"intellidraw/internal/domain/canvas"
	"intellidraw/internal/infrastructure/logger"
	"intellidraw/internal/port/inbound"
)

type AnalysisHandler struct {
	useCase      inbound.AnalysisUseCase
	maxBodyBytes int64
	logger       logger.Logger
}

type AnalyzeRequest struct {
	ImageDataURL string `json:"imageDataUrl" binding:"required"`
	Prompt       string `json:"prompt"`
}

type AnalyzeResponse struct {
	Status   string                `json:"status"`
	Analysis canvas.AnalysisResult `json:"analysis"`
}

// NewAnalysisHandler creates the analysis endpoint. maxBodyBytes <= 0
// leaves the request body unbounded.
func NewAnalysisHandler(useCase inbound.AnalysisUseCase, maxBodyBytes int64, logger logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		useCase:      useCase,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.WithField("handler", "analysis"),
	}
}

// Analyze annotates a canvas snapshot and shares the result with every
// connected client before answering the caller.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request format: %v", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	result, err := h.useCase.AnalyzeDrawing(c.Request.Context(), inbound.AnalyzeDrawingCommand{
		ImageDataURL: req.ImageDataURL,
		Prompt:       req.Prompt,
	})
	if err != nil {
		status := statusFor(err)
		h.logger.Errorf("Analysis request failed with %d: %v", status, err)
		c.JSON(status, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		Status:   "Analysis complete",
		Analysis: result,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, canvas.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, canvas.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, canvas.ErrInvalidDataURL):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
