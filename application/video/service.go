package video

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"segment-selector/domain/selection"
	"segment-selector/domain/video"
	"segment-selector/infrastructure/metrics"
)

// ClipResult contains the result of a clip operation
type ClipResult struct {
	ClipPath  string
	AudioPath string
	Start     string
	End       string
}

// ClipService cuts validated selections out of local source videos
type ClipService struct {
	trimmer     video.Trimmer
	extractor   *ExtractService
	fileChecker video.FileChecker
	outputDir   string
	audio       bool
	logger      *zap.Logger
}

// ClipOption is a functional option for configuring ClipService
type ClipOption func(*ClipService)

// WithAudio also extracts the selected range as MP3 on every clip
func WithAudio(extractor *ExtractService) ClipOption {
	return func(s *ClipService) {
		s.extractor = extractor
		s.audio = extractor != nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClipOption {
	return func(s *ClipService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewClipService creates a new ClipService
func NewClipService(trimmer video.Trimmer, fileChecker video.FileChecker, outputDir string, opts ...ClipOption) *ClipService {
	s := &ClipService{
		trimmer:     trimmer,
		fileChecker: fileChecker,
		outputDir:   outputDir,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClipInput represents the input for a clip operation
type ClipInput struct {
	SourcePath string
	Submission selection.Submission
	// Audio overrides the service default when set
	Audio *bool
}

// Clip cuts the submitted range out of the source
func (s *ClipService) Clip(ctx context.Context, input ClipInput) (*ClipResult, error) {
	if !s.fileChecker.Exists(input.SourcePath) {
		return nil, fmt.Errorf("source file does not exist: %s", input.SourcePath)
	}

	req, err := video.NewClipRequest(input.SourcePath, input.Submission)
	if err != nil {
		return nil, err
	}

	outputPath := req.OutputPath(s.outputDir)
	started := time.Now()
	if err := s.trimmer.Trim(ctx, req, outputPath); err != nil {
		return nil, err
	}
	metrics.ClipDuration.Observe(time.Since(started).Seconds())

	result := &ClipResult{
		ClipPath: outputPath,
		Start:    req.Start.String(),
		End:      req.End.String(),
	}

	wantAudio := s.audio
	if input.Audio != nil {
		wantAudio = *input.Audio
	}
	if wantAudio {
		if s.extractor == nil {
			return nil, fmt.Errorf("audio extraction requested but no extractor is configured")
		}
		audio, err := s.extractor.Extract(ctx, req, "")
		if err != nil {
			return nil, err
		}
		result.AudioPath = audio.OutputPath
	}

	s.logger.Info("clip written",
		zap.String("source", input.SourcePath),
		zap.String("clip", result.ClipPath),
		zap.String("audio", result.AudioPath),
		zap.Float64("duration", req.Duration()),
	)
	return result, nil
}

// Submit implements selection.Consumer by clipping the submission's source
func (s *ClipService) Submit(ctx context.Context, sub selection.Submission) error {
	_, err := s.Clip(ctx, ClipInput{SourcePath: sub.Source, Submission: sub})
	return err
}

var _ selection.Consumer = (*ClipService)(nil)
