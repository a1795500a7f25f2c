package inbound

import (
	"context"

	"intellidraw/internal/domain/canvas"
)

// AnalyzeDrawingCommand is a request to annotate a canvas snapshot.
type AnalyzeDrawingCommand struct {
	ImageDataURL string
	// Prompt overrides the configured default when non-empty.
	Prompt string
}

type AnalysisUseCase interface {
	AnalyzeDrawing(ctx context.Context, cmd AnalyzeDrawingCommand) (canvas.AnalysisResult, error)
}
