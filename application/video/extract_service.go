package video

import (
	"context"
	"fmt"

	"segment-selector/domain/video"
)

// ExtractResult contains the result of an audio extraction operation
type ExtractResult struct {
	OutputPath string
}

// ExtractService coordinates audio extraction of selected ranges
type ExtractService struct {
	extractor   video.AudioExtractor
	fileChecker video.FileChecker
	outputDir   string
	bitrate     string
}

// NewExtractService creates a new ExtractService
func NewExtractService(extractor video.AudioExtractor, fileChecker video.FileChecker, outputDir string, bitrate string) *ExtractService {
	if bitrate == "" {
		bitrate = video.DefaultAudioBitrate
	}
	return &ExtractService{
		extractor:   extractor,
		fileChecker: fileChecker,
		outputDir:   outputDir,
		bitrate:     bitrate,
	}
}

// Extract writes the audio of clip's range as MP3.
// An empty bitrate uses the service default
func (s *ExtractService) Extract(ctx context.Context, clip *video.ClipRequest, bitrate string) (*ExtractResult, error) {
	if clip == nil {
		return nil, fmt.Errorf("clip request is required")
	}
	if !s.fileChecker.Exists(clip.SourcePath) {
		return nil, fmt.Errorf("source video does not exist: %s", clip.SourcePath)
	}

	if bitrate == "" {
		bitrate = s.bitrate
	}

	req, err := video.NewAudioExtractionRequest(clip, bitrate)
	if err != nil {
		return nil, err
	}

	outputPath := req.OutputPath(s.outputDir)
	if err := s.extractor.Extract(ctx, req, outputPath); err != nil {
		return nil, err
	}

	return &ExtractResult{OutputPath: outputPath}, nil
}
