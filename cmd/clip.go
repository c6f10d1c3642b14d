package cmd

import (
	"context"
	"fmt"
	"os"

	appprocess "segment-selector/application/process"
	"segment-selector/domain/selection"
	"segment-selector/domain/video"
	"segment-selector/infrastructure/config"

	"github.com/spf13/cobra"
)

var (
	clipSourcePath string
	clipStartTime  string
	clipEndTime    string
	clipPlan       string
	clipAudio      bool
	clipReencode   bool
	clipQueue      bool
)

var clipCmd = &cobra.Command{
	Use:   "clip",
	Short: "Cut a selected range out of a video",
	Long: `Cut the range between --start and --end out of a local video.

The requested bounds go through the same rules as the interactive editor:
the end cannot pass the media, the selection cannot exceed the plan's
maximum length, and a selection shorter than the minimum is rejected.
When the plan cap is exceeded the start is pulled forward and the
adjusted range is reported.

The source video can be specified with --source, or the newest file in the
source directory will be used by default. Relative paths are resolved
against paths.source_directory.

Example:
  segment-selector clip --source talk.mp4 --start 00:05:30 --end 00:09:00

  segment-selector clip \
    --source "/videos/keynote.mkv" \
    --start 12:00 \
    --end 70:00 \
    --plan professional \
    --audio`,
	RunE: runClip,
}

func init() {
	rootCmd.AddCommand(clipCmd)
	clipCmd.Flags().StringVar(&clipSourcePath, "source", "", "Path to source video file (defaults to newest in source directory)")
	clipCmd.Flags().StringVar(&clipStartTime, "start", "", "Start as HH:MM:SS, MM:SS or seconds (required)")
	clipCmd.Flags().StringVar(&clipEndTime, "end", "", "End as HH:MM:SS, MM:SS or seconds (required)")
	clipCmd.Flags().StringVar(&clipPlan, "plan", "", "Plan tier (defaults to selection.default_plan)")
	clipCmd.Flags().BoolVar(&clipAudio, "audio", false, "Also extract the range as MP3")
	clipCmd.Flags().BoolVar(&clipReencode, "reencode", false, "Re-encode for frame-accurate cuts instead of stream copy")
	clipCmd.Flags().BoolVar(&clipQueue, "queue", false, "Also push the submission onto the configured Redis queue")

	clipCmd.MarkFlagRequired("start")
	clipCmd.MarkFlagRequired("end")
}

func runClip(cmd *cobra.Command, args []string) error {
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
	deps := newMediaDeps(cfg, logger, clipReencode)
	if err := verifyFFmpeg(ctx, deps.trimmer); err != nil {
		return err
	}

	clipper, err := deps.clipService(cfg, logger, false)
	if err != nil {
		return err
	}

	var downstream selection.Consumer
	if clipQueue {
		consumer, closeQueue, err := newQueueConsumer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeQueue()
		if consumer == nil {
			return fmt.Errorf("--queue requires queue.redis_addr or SEGSEL_REDIS_ADDR")
		}
		downstream = consumer
	}

	_, err = RunClipWithDependencies(
		ctx,
		cfg,
		deps.prober,
		clipper,
		downstream,
		deps.fileChecker,
		&ProductionFileFinder{},
		appprocess.Input{
			SourcePath: clipSourcePath,
			StartTime:  clipStartTime,
			EndTime:    clipEndTime,
			Plan:       clipPlan,
			Audio:      clipAudio,
		},
		os.Stdout,
	)
	return err
}

// RunClipWithDependencies runs the clip command with injected dependencies (for testing)
func RunClipWithDependencies(
	ctx context.Context,
	cfg *config.Config,
	prober selection.MetadataProvider,
	clipper appprocess.Clipper,
	downstream selection.Consumer,
	fileChecker video.FileChecker,
	fileFinder appprocess.FileFinder,
	input appprocess.Input,
	output OutputWriter,
) (*appprocess.Result, error) {
	service := appprocess.NewService(
		prober,
		clipper,
		downstream,
		fileChecker,
		fileFinder,
		cfg,
		output,
	)
	return service.Process(ctx, input)
}
