package video

import "context"

// Trimmer defines the interface for cutting a clip out of a source video
// This is a port that can be implemented by different infrastructure adapters
type Trimmer interface {
	// Trim cuts the requested range and saves it to outputPath
	Trim(ctx context.Context, req *ClipRequest, outputPath string) error
}

// FileChecker defines the interface for checking file existence
// This is used to validate local sources before probing them
type FileChecker interface {
	// Exists returns true if the file exists
	Exists(path string) bool
}
