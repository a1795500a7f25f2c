package outbound

import (
	"context"

	"intellidraw/internal/domain/canvas"
)

// Analyzer is the analysis service: image in, annotation out. Calls may take
// several seconds.
type Analyzer interface {
	Analyze(ctx context.Context, image canvas.Image, prompt string) (canvas.AnalysisResult, error)
}
