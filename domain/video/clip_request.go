package video

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"segment-selector/domain/selection"
)

// defaultClipExt is used when the source has no usable extension, e.g. a URL
const defaultClipExt = ".mp4"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ClipRequest represents a request to cut a validated selection out of a source video
type ClipRequest struct {
	SourcePath string
	Start      Timestamp
	End        Timestamp
}

// NewClipRequest creates a ClipRequest from a submitted selection
func NewClipRequest(sourcePath string, sub selection.Submission) (*ClipRequest, error) {
	req := &ClipRequest{
		SourcePath: sourcePath,
		Start:      FromSeconds(sub.Start),
		End:        FromSeconds(sub.End),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate checks that the clip request is valid
func (r *ClipRequest) Validate() error {
	if r.SourcePath == "" {
		return fmt.Errorf("source path is required")
	}

	if !r.End.After(r.Start) {
		return fmt.Errorf("end time %s must be after start time %s", r.End, r.Start)
	}

	return nil
}

// Duration returns the clip length in seconds
func (r *ClipRequest) Duration() float64 {
	return r.End.TotalSeconds() - r.Start.TotalSeconds()
}

// Stem returns the output base name: source name plus the selected range
func (r *ClipRequest) Stem() string {
	base := filepath.Base(r.SourcePath)
	stem := unsafeNameChars.ReplaceAllString(strings.TrimSuffix(base, filepath.Ext(base)), "_")
	stem = strings.Trim(stem, "_")
	if stem == "" {
		stem = "clip"
	}
	return fmt.Sprintf("%s_%s_%s", stem, r.Start.FileStamp(), r.End.FileStamp())
}

// OutputFilename returns the clip file name, keeping the source extension
func (r *ClipRequest) OutputFilename() string {
	ext := filepath.Ext(r.SourcePath)
	if ext == "" || strings.ContainsAny(ext, "?&=/") {
		ext = defaultClipExt
	}
	return r.Stem() + ext
}

// OutputPath returns the full output path given an output directory
func (r *ClipRequest) OutputPath(outputDir string) string {
	return filepath.Join(outputDir, r.OutputFilename())
}
