package cmd

import (
	"os"
	"os/signal"
	"syscall"

	appselection "segment-selector/application/selection"
	"segment-selector/infrastructure/config"
	"segment-selector/infrastructure/httpapi"
	"segment-selector/infrastructure/queue"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveAddr  string
	serveClip  bool
	serveAudio bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the selection API",
	Long: `Start the HTTP and WebSocket API used by browser editors.

Each editor opens a session for a video, sends click/move/reset events,
and proceeds when the selection is final. Submissions are pushed onto
the Redis queue when queue.redis_addr is set, and local sources can be
clipped on the server with --clip.

The config file is watched: editing a plan's max_span_seconds applies
the new limit to open sessions on that plan.

Example:
  segment-selector serve --addr :8080
  SEGSEL_REDIS_ADDR=localhost:6379 segment-selector serve --clip`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr)")
	serveCmd.Flags().BoolVar(&serveClip, "clip", false, "Cut local sources on the server when a selection is submitted")
	serveCmd.Flags().BoolVar(&serveAudio, "audio", false, "Also extract audio when clipping")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := newMediaDeps(cfg, logger, false)

	// queue before clip, see MultiConsumer
	consumer, closeQueue, err := newQueueConsumer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue()
	consumers := queue.MultiConsumer{consumer}
	if serveClip {
		if err := verifyFFmpeg(ctx, deps.trimmer); err != nil {
			return err
		}
		clipper, err := deps.clipService(cfg, logger, serveAudio)
		if err != nil {
			return err
		}
		consumers = append(consumers, clipper)
	}

	registry := appselection.NewRegistry(deps.prober, cfg,
		appselection.WithLogger(logger),
		appselection.WithConsumer(consumers),
	)

	watcher := config.NewWatcher(cfgFile, cfg, logger)
	watcher.OnLoad(applyOverrides)
	watcher.Subscribe(func(c *config.Config) {
		registry.UsePlans(c)
	})
	if _, err := os.Stat(cfgFile); err == nil {
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Info("no config file, plan limits will not be reloaded", zap.String("path", cfgFile))
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	server := httpapi.NewServer(registry, watcher, logger, cfg.Server.AllowedOrigins)
	return server.ListenAndServe(ctx, addr)
}
