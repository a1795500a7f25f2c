package facade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"intellidraw/internal/domain/canvas"
	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
	"intellidraw/internal/port/inbound"
	"intellidraw/internal/port/outbound"
)

// ErrAnalysisFailed wraps any error coming back from the analyzer.
var ErrAnalysisFailed = errors.New("analysis failed")

const DefaultPrompt = "What is in this image?"

type AnalysisConfig struct {
	DefaultPrompt string
	Timeout       time.Duration
	// MaxImageBytes caps the decoded image size; 0 disables the cap.
	MaxImageBytes int
}

type AnalysisApplicationService struct {
	analyzer    outbound.Analyzer
	broadcaster hub.Broadcaster
	cfg         AnalysisConfig
	logger      logger.Logger
}

var _ inbound.AnalysisUseCase = (*AnalysisApplicationService)(nil)

func NewAnalysisApplicationService(
	analyzer outbound.Analyzer,
	broadcaster hub.Broadcaster,
	cfg AnalysisConfig,
	logger logger.Logger,
) *AnalysisApplicationService {
	if strings.TrimSpace(cfg.DefaultPrompt) == "" {
		cfg.DefaultPrompt = DefaultPrompt
	}
	return &AnalysisApplicationService{
		analyzer:    analyzer,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger.WithField("service", "analysis"),
	}
}

// AnalyzeDrawing decodes the snapshot, runs the analyzer and, on success,
// broadcasts an analysis_result envelope to every connected client before
// returning the result.
func (s *AnalysisApplicationService) AnalyzeDrawing(
	ctx context.Context,
	cmd inbound.AnalyzeDrawingCommand,
) (canvas.AnalysisResult, error) {
	image, err := canvas.ParseDataURL(cmd.ImageDataURL, s.cfg.MaxImageBytes)
	if err != nil {
		return canvas.AnalysisResult{}, err
	}

	prompt := strings.TrimSpace(cmd.Prompt)
	if prompt == "" {
		prompt = s.cfg.DefaultPrompt
	}

	actx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	result, err := s.analyzer.Analyze(actx, image, prompt)
	if err != nil {
		s.logger.Errorf("Analysis failed: %v", err)
		return canvas.AnalysisResult{}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	msg, err := hub.NewEnvelopeMessage(hub.MessageTypeAnalysisResult, result)
	if err != nil {
		return canvas.AnalysisResult{}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	// The requester may hang up once it has its answer; everyone else
	// still gets the result.
	s.broadcaster.Broadcast(context.WithoutCancel(ctx), msg)
	s.logger.Infof("Broadcast analysis result (%d tags)", len(result.Tags))

	return result, nil
}
