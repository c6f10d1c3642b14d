package video

import (
	"fmt"
	"path/filepath"
)

// DefaultAudioBitrate is the default bitrate for audio extraction
const DefaultAudioBitrate = "192k"

// AudioExtractionRequest represents a request to extract the audio of a selected range
type AudioExtractionRequest struct {
	SourceVideoPath string
	Bitrate         string
	Start           Timestamp
	End             Timestamp
	stem            string
}

// NewAudioExtractionRequest creates a request covering the same range as clip
func NewAudioExtractionRequest(clip *ClipRequest, bitrate string) (*AudioExtractionRequest, error) {
	if clip == nil {
		return nil, fmt.Errorf("clip request is required")
	}
	if err := clip.Validate(); err != nil {
		return nil, err
	}

	if bitrate == "" {
		bitrate = DefaultAudioBitrate
	}

	return &AudioExtractionRequest{
		SourceVideoPath: clip.SourcePath,
		Bitrate:         bitrate,
		Start:           clip.Start,
		End:             clip.End,
		stem:            clip.Stem(),
	}, nil
}

// OutputFilename returns the output filename, matching the clip name with .mp3
func (r *AudioExtractionRequest) OutputFilename() string {
	return r.stem + ".mp3"
}

// OutputPath returns the full output path including the directory
func (r *AudioExtractionRequest) OutputPath(outputDir string) string {
	return filepath.Join(outputDir, r.OutputFilename())
}
