package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"segment-selector/domain/selection"
	"segment-selector/domain/video"
	"segment-selector/infrastructure/metrics"
)

// probeOutput is the subset of ffprobe's JSON we read
type probeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

// Prober implements selection.MetadataProvider using ffprobe
type Prober struct {
	ffprobePath string
	runner      CommandRunner
	files       video.FileChecker
}

// ProberOption is a functional option for configuring Prober
type ProberOption func(*Prober)

// WithFFprobePath sets a custom ffprobe executable path
func WithFFprobePath(path string) ProberOption {
	return func(p *Prober) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// WithProberCommandRunner sets a custom command runner (for testing)
func WithProberCommandRunner(runner CommandRunner) ProberOption {
	return func(p *Prober) {
		p.runner = runner
	}
}

// WithFileChecker makes the prober reject local paths that do not exist
// before invoking ffprobe. URLs are passed through
func WithFileChecker(files video.FileChecker) ProberOption {
	return func(p *Prober) {
		p.files = files
	}
}

// NewProber creates a new ffprobe-based metadata provider
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		ffprobePath: "ffprobe",
		runner:      &ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe implements selection.MetadataProvider
func (p *Prober) Probe(ctx context.Context, source string) (selection.MediaReference, error) {
	if strings.TrimSpace(source) == "" {
		return selection.MediaReference{}, fmt.Errorf("%w: source is required", selection.ErrInvalidMedia)
	}
	if p.files != nil && !isRemote(source) && !p.files.Exists(source) {
		return selection.MediaReference{}, fmt.Errorf("%w: source file not found: %s", selection.ErrInvalidMedia, source)
	}

	started := time.Now()
	out, err := p.runner.Output(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration:format_tags=title",
		"-of", "json",
		source,
	)
	metrics.ProbeDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return selection.MediaReference{}, fmt.Errorf("ffprobe failed for %s: %w", source, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return selection.MediaReference{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil {
		return selection.MediaReference{}, fmt.Errorf("%w: ffprobe reported no duration for %s", selection.ErrInvalidMedia, source)
	}

	media, err := selection.NewMediaReference(source, duration)
	if err != nil {
		return selection.MediaReference{}, err
	}
	media.Title = parsed.Format.Tags["title"]

	return media, nil
}

func isRemote(source string) bool {
	return strings.Contains(source, "://")
}

var _ selection.MetadataProvider = (*Prober)(nil)
