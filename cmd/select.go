package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"segment-selector/domain/selection"
	"segment-selector/domain/video"
	"segment-selector/infrastructure/config"
	"segment-selector/infrastructure/queue"

	"github.com/spf13/cobra"
)

// trackWidth is the number of characters used to draw the timeline
const trackWidth = 50

// Editor actions offered after every change
const (
	actionClick   = "Click on the track"
	actionStart   = "Move start"
	actionEnd     = "Move end"
	actionReset   = "Reset"
	actionProceed = "Proceed"
	actionQuit    = "Quit"
)

var editorActions = []string{actionClick, actionStart, actionEnd, actionReset, actionProceed, actionQuit}

var (
	selectSourcePath string
	selectPlan       string
	selectClip       bool
	selectAudio      bool
	selectQueue      bool
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Choose a range of a video interactively",
	Long: `Open a video in the interactive range editor.

The editor starts with the first part of the video selected, up to the
plan's maximum length. Click somewhere on the track to move the nearest
boundary there, or move the start and end directly. Proceed validates
the selection and hands it off:

  - local sources are clipped into paths.clips_directory (unless --clip=false)
  - with --queue, the selection is also pushed onto the Redis queue

Example:
  segment-selector select --source talk.mp4 --plan starter
  segment-selector select --source "https://cdn.example.com/talk.mp4" --queue`,
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)
	selectCmd.Flags().StringVar(&selectSourcePath, "source", "", "Video file path or URL (required)")
	selectCmd.Flags().StringVar(&selectPlan, "plan", "", "Plan tier (defaults to selection.default_plan)")
	selectCmd.Flags().BoolVar(&selectClip, "clip", true, "Cut local sources when the selection is submitted")
	selectCmd.Flags().BoolVar(&selectAudio, "audio", false, "Also extract the range as MP3 when clipping")
	selectCmd.Flags().BoolVar(&selectQueue, "queue", false, "Push the submission onto the configured Redis queue")
	selectCmd.MarkFlagRequired("source")
}

func runSelect(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	deps := newMediaDeps(cfg, logger, false)

	var consumers queue.MultiConsumer
	if selectQueue {
		consumer, closeQueue, err := newQueueConsumer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeQueue()
		if consumer == nil {
			return fmt.Errorf("--queue requires queue.redis_addr or SEGSEL_REDIS_ADDR")
		}
		consumers = append(consumers, consumer)
	}
	if selectClip && !strings.Contains(selectSourcePath, "://") {
		if err := verifyFFmpeg(ctx, deps.trimmer); err != nil {
			return err
		}
		clipper, err := deps.clipService(cfg, logger, selectAudio)
		if err != nil {
			return err
		}
		consumers = append(consumers, clipper)
	}

	_, err = RunSelectWithDependencies(ctx, cfg, deps.prober, consumers, DefaultPrompter, selectSourcePath, selectPlan, os.Stdout)
	return err
}

// RunSelectWithDependencies runs the interactive editor with injected dependencies (for testing).
// It returns nil without error when the user quits
func RunSelectWithDependencies(
	ctx context.Context,
	cfg *config.Config,
	prober selection.MetadataProvider,
	consumer selection.Consumer,
	prompter Prompter,
	source string,
	plan string,
	out OutputWriter,
) (*selection.Submission, error) {
	planKey, constraints, err := cfg.ResolvePlan(plan)
	if err != nil {
		return nil, fmt.Errorf("%w\n\nTo fix this, run:\n  %s", err, config.SuggestAddPlanCommand(strings.ToLower(strings.TrimSpace(plan))))
	}

	session, err := selection.NewSession(constraints)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "Reading %s...\n", source)
	media, err := prober.Probe(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load media: %w", err)
	}
	sel, err := session.Load(media)
	if err != nil {
		return nil, err
	}

	if media.Title != "" {
		fmt.Fprintf(out, "Title:    %s\n", media.Title)
	}
	fmt.Fprintf(out, "Duration: %s\n", video.FormatClock(media.TotalDuration))
	fmt.Fprintf(out, "Plan:     %s (max %s)\n", planKey, video.FormatClock(constraints.MaxSpan))

	for {
		printSelection(out, sel, media.TotalDuration)

		action, err := prompter.Select("What next?", editorActions, actionProceed)
		if err != nil {
			return nil, fmt.Errorf("prompt cancelled")
		}

		var evErr error

		switch action {
		case actionClick:
			answer, err := prompter.Input("Position on the track (0-100%):", "")
			if err != nil {
				return nil, fmt.Errorf("prompt cancelled")
			}
			pct, perr := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(answer), "%"), 64)
			if perr != nil {
				fmt.Fprintf(out, "  Not a percentage: %q\n", answer)
				continue
			}
			sel, evErr = session.Click(pct / 100)

		case actionStart, actionEnd:
			boundary, current := selection.BoundaryStart, sel.Start
			if action == actionEnd {
				boundary, current = selection.BoundaryEnd, sel.End
			}
			answer, err := prompter.Input(fmt.Sprintf("New %s (HH:MM:SS, MM:SS or seconds):", boundary), video.FormatClock(current))
			if err != nil {
				return nil, fmt.Errorf("prompt cancelled")
			}
			ts, perr := video.ParseTimestamp(strings.TrimSpace(answer))
			if perr != nil {
				fmt.Fprintf(out, "  %v\n", perr)
				continue
			}
			sel, evErr = session.Move(boundary, ts.TotalSeconds())

		case actionReset:
			sel, evErr = session.Reset()

		case actionProceed:
			sub, perr := session.Proceed(ctx, consumer)
			var spanErr *selection.SpanError
			switch {
			case perr == nil:
				fmt.Fprintf(out, "Submitted %s - %s (%s)\n",
					video.FormatClock(sub.Start), video.FormatClock(sub.End), video.FormatClock(sub.Duration))
				return &sub, nil
			case errors.As(perr, &spanErr):
				fmt.Fprintf(out, "  Cannot proceed: %v\n", perr)
			case errors.Is(perr, selection.ErrConsumerFailed):
				fmt.Fprintf(out, "  Submission failed, selection kept: %v\n", perr)
			default:
				return nil, perr
			}
			continue

		case actionQuit:
			fmt.Fprintln(out, "Selection discarded.")
			return nil, nil

		default:
			return nil, fmt.Errorf("unknown action %q", action)
		}

		if errors.Is(evErr, selection.ErrInvalidEvent) {
			fmt.Fprintf(out, "  %v\n", evErr)
			continue
		}
		if evErr != nil {
			return nil, evErr
		}
	}
}

func printSelection(out OutputWriter, sel selection.Selection, duration float64) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s\n", renderTrack(sel, duration, trackWidth))
	fmt.Fprintf(out, "  Selected %s - %s (%s)\n",
		video.FormatClock(sel.Start), video.FormatClock(sel.End), video.FormatClock(sel.Span()))
}

// renderTrack draws the selection as [----####------]
func renderTrack(sel selection.Selection, duration float64, width int) string {
	if duration <= 0 || width <= 0 {
		return "[]"
	}
	from := int(sel.Start / duration * float64(width))
	to := int(sel.End/duration*float64(width) + 0.5)
	if to <= from {
		to = from + 1
	}
	if to > width {
		to = width
	}
	if from >= to {
		from = to - 1
	}

	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < width; i++ {
		if i >= from && i < to {
			b.WriteByte('#')
		} else {
			b.WriteByte('-')
		}
	}
	b.WriteByte(']')
	return b.String()
}
