package video

import "context"

// AudioExtractor defines the interface for audio extraction operations
type AudioExtractor interface {
	// Extract writes the audio of the requested range to outputPath
	Extract(ctx context.Context, req *AudioExtractionRequest, outputPath string) error
}
