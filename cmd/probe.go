package cmd

import (
	"context"
	"fmt"
	"os"

	"segment-selector/domain/selection"
	"segment-selector/domain/video"
	"segment-selector/infrastructure/config"

	"github.com/spf13/cobra"
)

var probePlan string

var probeCmd = &cobra.Command{
	Use:   "probe <source>",
	Short: "Print the duration of a video",
	Long: `Read a video's metadata with ffprobe and print its duration together
with the initial selection the editor would start from.

Example:
  segment-selector probe talk.mp4
  segment-selector probe "https://cdn.example.com/talk.mp4" --plan professional`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVar(&probePlan, "plan", "", "Plan tier (defaults to selection.default_plan)")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	deps := newMediaDeps(cfg, logger, false)
	return RunProbeWithDependencies(cmd.Context(), cfg, deps.prober, args[0], probePlan, os.Stdout)
}

// RunProbeWithDependencies runs the probe command with injected dependencies (for testing)
func RunProbeWithDependencies(
	ctx context.Context,
	cfg *config.Config,
	prober selection.MetadataProvider,
	source string,
	plan string,
	out OutputWriter,
) error {
	planKey, constraints, err := cfg.ResolvePlan(plan)
	if err != nil {
		return err
	}

	media, err := prober.Probe(ctx, source)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	initial := selection.InitialSelection(constraints, media.TotalDuration)

	fmt.Fprintf(out, "Source:    %s\n", media.Source)
	if media.Title != "" {
		fmt.Fprintf(out, "Title:     %s\n", media.Title)
	}
	fmt.Fprintf(out, "Duration:  %s (%.3fs)\n", video.FormatClock(media.TotalDuration), media.TotalDuration)
	fmt.Fprintf(out, "Initial:   %s - %s on plan %s\n", video.FormatClock(initial.Start), video.FormatClock(initial.End), planKey)
	return nil
}
