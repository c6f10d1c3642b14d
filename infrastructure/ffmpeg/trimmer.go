package ffmpeg

import (
	"context"
	"fmt"

	"segment-selector/domain/video"
)

// Trimmer implements video.Trimmer using ffmpeg
type Trimmer struct {
	ffmpegPath string
	runner     CommandRunner
	reencode   bool
}

// TrimmerOption is a functional option for configuring Trimmer
type TrimmerOption func(*Trimmer)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) TrimmerOption {
	return func(t *Trimmer) {
		if path != "" {
			t.ffmpegPath = path
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner CommandRunner) TrimmerOption {
	return func(t *Trimmer) {
		t.runner = runner
	}
}

// WithReencode makes the trimmer re-encode instead of stream copying.
// Stream copy cuts on keyframes; re-encoding gives frame-accurate bounds
func WithReencode(reencode bool) TrimmerOption {
	return func(t *Trimmer) {
		t.reencode = reencode
	}
}

// NewTrimmer creates a new FFmpeg-based trimmer
func NewTrimmer(opts ...TrimmerOption) *Trimmer {
	t := &Trimmer{
		ffmpegPath: "ffmpeg",
		runner:     &ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Args returns the ffmpeg arguments used to cut req into outputPath
func (t *Trimmer) Args(req *video.ClipRequest, outputPath string) []string {
	args := []string{
		"-ss", seconds(req.Start.TotalSeconds()),
		"-i", req.SourcePath,
		"-t", seconds(req.Duration()),
	}
	if t.reencode {
		args = append(args, "-c:v", "libx264", "-c:a", "aac")
	} else {
		args = append(args, "-c", "copy", "-avoid_negative_ts", "make_zero")
	}
	return append(args, "-y", outputPath)
}

// Trim implements video.Trimmer
func (t *Trimmer) Trim(ctx context.Context, req *video.ClipRequest, outputPath string) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if err := t.runner.Run(ctx, t.ffmpegPath, t.Args(req, outputPath)...); err != nil {
		return fmt.Errorf("ffmpeg trim failed: %w", err)
	}

	return nil
}

// VerifyInstalled checks that ffmpeg is available
func (t *Trimmer) VerifyInstalled(ctx context.Context) error {
	_, err := t.runner.Output(ctx, t.ffmpegPath, "-version")
	if err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

var _ video.Trimmer = (*Trimmer)(nil)
