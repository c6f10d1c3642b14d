package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	appvideo "segment-selector/application/video"
	"segment-selector/domain/selection"
	"segment-selector/domain/video"
	"segment-selector/infrastructure/config"
	"segment-selector/infrastructure/metrics"
)

// videoExtensions are tried in order when picking the newest source
var videoExtensions = []string{".mp4", ".mkv", ".mov", ".webm"}

// FileFinder abstracts file system operations for finding files
type FileFinder interface {
	FindNewestFile(dir, ext string) (string, error)
}

// Clipper cuts a submitted selection out of a local source
type Clipper interface {
	Clip(ctx context.Context, input appvideo.ClipInput) (*appvideo.ClipResult, error)
}

// Service orchestrates the non-interactive clip workflow
type Service struct {
	prober      selection.MetadataProvider
	clipper     Clipper
	downstream  selection.Consumer
	fileChecker video.FileChecker
	fileFinder  FileFinder
	cfg         *config.Config
	output      io.Writer
}

// NewService creates a new process service.
// downstream may be nil; when set it receives every submission after the clip is written
func NewService(
	prober selection.MetadataProvider,
	clipper Clipper,
	downstream selection.Consumer,
	fileChecker video.FileChecker,
	fileFinder FileFinder,
	cfg *config.Config,
	output io.Writer,
) *Service {
	return &Service{
		prober:      prober,
		clipper:     clipper,
		downstream:  downstream,
		fileChecker: fileChecker,
		fileFinder:  fileFinder,
		cfg:         cfg,
		output:      output,
	}
}

// Input contains all input parameters for the clip command
type Input struct {
	SourcePath string // Source video path (newest in source directory if empty)
	StartTime  string // HH:MM:SS, MM:SS or seconds
	EndTime    string // HH:MM:SS, MM:SS or seconds
	Plan       string // Plan tier key (default plan if empty)
	Audio      bool   // Also extract the range as MP3
}

// Result contains the results of a successful run
type Result struct {
	Submission selection.Submission
	Requested  selection.Selection
	Adjusted   bool
	ClipPath   string
	AudioPath  string
}

// ValidationError contains details about a validation failure with suggestions
type ValidationError struct {
	Message    string
	Suggestion string
	Err        error
}

func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s\n\nTo fix this, run:\n  %s", e.Message, e.Suggestion)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Process runs the complete workflow: probe, select, validate, clip
func (s *Service) Process(ctx context.Context, input Input) (*Result, error) {
	startTime := time.Now()

	sourcePath, requested, plan, constraints, err := s.validateInputs(input)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(s.output, "Using source: %s\n", filepath.Base(sourcePath))
	fmt.Fprintf(s.output, "Plan: %s (max %s)\n", plan, video.FormatClock(constraints.MaxSpan))
	fmt.Fprintln(s.output)

	// Step 1: Probe
	fmt.Fprintf(s.output, "[1/4] Reading media...\n")
	media, err := s.prober.Probe(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("probe failed: %w", err)
	}
	if media.Title != "" {
		fmt.Fprintf(s.output, "      Title: %s\n", media.Title)
	}
	fmt.Fprintf(s.output, "      Duration: %s\n\n", video.FormatClock(media.TotalDuration))

	// Step 2: Apply the requested bounds
	fmt.Fprintf(s.output, "[2/4] Applying selection...\n")
	session, err := selection.NewSession(constraints)
	if err != nil {
		return nil, err
	}
	if _, err := session.Load(media); err != nil {
		return nil, err
	}
	sel, err := applyBounds(session, requested)
	if err != nil {
		return nil, err
	}
	adjusted := sel != requested
	fmt.Fprintf(s.output, "      Selected: %s - %s\n", video.FormatClock(sel.Start), video.FormatClock(sel.End))
	if adjusted {
		fmt.Fprintf(s.output, "      Adjusted from %s - %s to fit the media and plan limits\n",
			video.FormatClock(requested.Start), video.FormatClock(requested.End))
	}
	fmt.Fprintln(s.output)

	// Step 3: Validate
	fmt.Fprintf(s.output, "[3/4] Validating...\n")
	if _, err := session.Validate(); err != nil {
		metrics.RecordSubmission(err)
		return nil, s.spanValidationError(err, plan)
	}
	fmt.Fprintf(s.output, "      OK (%s)\n\n", video.FormatClock(sel.Span()))

	// Step 4: Clip
	fmt.Fprintf(s.output, "[4/4] Cutting clip...\n")
	var clip *appvideo.ClipResult
	consumer := selection.ConsumerFunc(func(ctx context.Context, sub selection.Submission) error {
		audio := input.Audio
		result, err := s.clipper.Clip(ctx, appvideo.ClipInput{SourcePath: sourcePath, Submission: sub, Audio: &audio})
		if err != nil {
			return err
		}
		clip = result
		if s.downstream != nil {
			return s.downstream.Submit(ctx, sub)
		}
		return nil
	})
	sub, err := session.Proceed(ctx, consumer)
	metrics.RecordSubmission(err)
	if err != nil {
		s.showRecoveryCommands(input, sourcePath, sel, plan)
		return nil, fmt.Errorf("clip failed: %w", err)
	}
	fmt.Fprintf(s.output, "      Created: %s\n", clip.ClipPath)
	if clip.AudioPath != "" {
		fmt.Fprintf(s.output, "      Created: %s\n", clip.AudioPath)
	}
	fmt.Fprintln(s.output)

	elapsed := time.Since(startTime)
	fmt.Fprintf(s.output, "Done! Completed in %s\n", formatDuration(elapsed))

	return &Result{
		Submission: sub,
		Requested:  requested,
		Adjusted:   adjusted,
		ClipPath:   clip.ClipPath,
		AudioPath:  clip.AudioPath,
	}, nil
}

// validateInputs checks everything that can fail before any work is done
func (s *Service) validateInputs(input Input) (sourcePath string, requested selection.Selection, plan string, constraints selection.Constraints, err error) {
	plan, constraints, err = s.cfg.ResolvePlan(input.Plan)
	if err != nil {
		err = &ValidationError{
			Message:    fmt.Sprintf("plan '%s' not found in config", input.Plan),
			Suggestion: config.SuggestAddPlanCommand(strings.ToLower(strings.TrimSpace(input.Plan))),
			Err:        err,
		}
		return
	}

	start, err := video.ParseTimestamp(input.StartTime)
	if err != nil {
		err = fmt.Errorf("invalid start time: %w", err)
		return
	}
	end, err := video.ParseTimestamp(input.EndTime)
	if err != nil {
		err = fmt.Errorf("invalid end time: %w", err)
		return
	}
	if !end.After(start) {
		err = fmt.Errorf("end time %s must be after start time %s", end, start)
		return
	}
	requested = selection.Selection{Start: start.TotalSeconds(), End: end.TotalSeconds()}

	sourcePath = input.SourcePath
	if sourcePath == "" {
		sourcePath, err = s.findNewestSource()
		if err != nil {
			return
		}
	} else if !isRemote(sourcePath) && !filepath.IsAbs(sourcePath) && s.cfg.Paths.SourceDirectory != "" {
		sourcePath = filepath.Join(s.cfg.Paths.SourceDirectory, sourcePath)
	}

	if isRemote(sourcePath) {
		err = fmt.Errorf("clipping requires a local source file, got %s", sourcePath)
		return
	}
	if !s.fileChecker.Exists(sourcePath) {
		err = fmt.Errorf("source file does not exist: %s", sourcePath)
		return
	}

	return
}

func (s *Service) findNewestSource() (string, error) {
	if s.cfg.Paths.SourceDirectory == "" {
		return "", fmt.Errorf("no source given and paths.source_directory is not configured")
	}
	for _, ext := range videoExtensions {
		if newest, err := s.fileFinder.FindNewestFile(s.cfg.Paths.SourceDirectory, ext); err == nil && newest != "" {
			return newest, nil
		}
	}
	return "", fmt.Errorf("no video files found in %s", s.cfg.Paths.SourceDirectory)
}

func (s *Service) spanValidationError(err error, plan string) error {
	var spanErr *selection.SpanError
	if !errors.As(err, &spanErr) {
		return err
	}

	if errors.Is(err, selection.ErrSelectionTooLong) {
		suggestion := ""
		if next := s.largerPlan(plan, spanErr.Span); next != "" {
			suggestion = fmt.Sprintf("segment-selector clip ... --plan %s", next)
		}
		return &ValidationError{
			Message: fmt.Sprintf("selection of %s is longer than the %s plan allows (%s)",
				video.FormatClock(spanErr.Span), plan, video.FormatClock(spanErr.Limit)),
			Suggestion: suggestion,
			Err:        err,
		}
	}

	return &ValidationError{
		Message: fmt.Sprintf("selection of %.1fs is shorter than the minimum of %.1fs", spanErr.Span, spanErr.Limit),
		Err:     err,
	}
}

// largerPlan returns the smallest plan whose cap fits span
func (s *Service) largerPlan(current string, span float64) string {
	for _, key := range s.cfg.PlanKeys() {
		if key != current && s.cfg.Plans[key].MaxSpanSeconds >= span {
			return key
		}
	}
	return ""
}

// applyBounds moves both boundaries to the requested positions.
// The boundary that moves away from the other one goes first so that the
// minimum gap never blocks the second move
func applyBounds(session *selection.Session, requested selection.Selection) (selection.Selection, error) {
	current, _ := session.Selection()
	first, second := selection.BoundaryStart, selection.BoundaryEnd
	if requested.Start > current.End-session.Constraints().Gap() {
		first, second = selection.BoundaryEnd, selection.BoundaryStart
	}

	target := func(b selection.Boundary) float64 {
		if b == selection.BoundaryStart {
			return requested.Start
		}
		return requested.End
	}

	if _, err := session.Move(first, target(first)); err != nil {
		return selection.Selection{}, err
	}
	return session.Move(second, target(second))
}

func (s *Service) showRecoveryCommands(input Input, sourcePath string, sel selection.Selection, plan string) {
	fmt.Fprintln(s.output)
	fmt.Fprintln(s.output, "To retry manually:")

	audio := ""
	if input.Audio {
		audio = " --audio"
	}
	fmt.Fprintf(s.output, "  segment-selector clip --source %q --start %s --end %s --plan %s%s\n",
		sourcePath, video.FromSeconds(sel.Start), video.FromSeconds(sel.End), plan, audio)
	fmt.Fprintln(s.output)
}

func isRemote(source string) bool {
	return strings.Contains(source, "://")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// StepInfo provides information about a workflow step
type StepInfo struct {
	Number      int
	Description string
}

// GetSteps returns the steps of the workflow
func GetSteps() []StepInfo {
	return []StepInfo{
		{1, "Reading media"},
		{2, "Applying selection"},
		{3, "Validating"},
		{4, "Cutting clip"},
	}
}
