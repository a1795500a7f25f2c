package analysis

import (
	"context"
	"fmt"
	"time"

	"intellidraw/internal/domain/canvas"
	"intellidraw/internal/infrastructure/logger"
	"intellidraw/internal/port/outbound"
)

// SimulatedAnalyzer stands in for a multimodal model: it waits for the
// configured latency and returns a canned annotation.
type SimulatedAnalyzer struct {
	latency time.Duration
	result  canvas.AnalysisResult
	logger  logger.Logger
}

var _ outbound.Analyzer = (*SimulatedAnalyzer)(nil)

// NewSimulatedAnalyzer returns an analyzer answering with DefaultResult.
func NewSimulatedAnalyzer(latency time.Duration, logger logger.Logger) *SimulatedAnalyzer {
	if latency < 0 {
		latency = 0
	}
	return &SimulatedAnalyzer{
		latency: latency,
		result:  DefaultResult(),
		logger:  logger.WithField("component", "analyzer"),
	}
}

// DefaultResult is the canned annotation of the simulated analyzer.
func DefaultResult() canvas.AnalysisResult {
	return canvas.AnalysisResult{
		Description:     "Based on my analysis, this appears to be a drawing of a house.",
		Tags:            []string{"house", "drawing", "building", "art"},
		ConfidenceScore: 0.85,
	}
}

// WithResult replaces the canned annotation.
func (a *SimulatedAnalyzer) WithResult(result canvas.AnalysisResult) *SimulatedAnalyzer {
	a.result = result
	return a
}

func (a *SimulatedAnalyzer) Analyze(
	ctx context.Context,
	image canvas.Image,
	prompt string,
) (canvas.AnalysisResult, error) {
	a.logger.Infof("Received %s image (%d bytes) for analysis, prompt %q", image.MediaType, len(image.Data), prompt)

	timer := time.NewTimer(a.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return canvas.AnalysisResult{}, fmt.Errorf("analysis interrupted: %w", ctx.Err())
	}

	result := a.result
	result.Tags = append([]string(nil), a.result.Tags...)
	if err := result.Validate(); err != nil {
		return canvas.AnalysisResult{}, fmt.Errorf("analysis returned an invalid result: %w", err)
	}

	a.logger.Info("Analysis complete")
	return result, nil
}
