package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	appvideo "segment-selector/application/video"
	"segment-selector/domain/selection"
	"segment-selector/infrastructure/config"
	"segment-selector/infrastructure/ffmpeg"
	"segment-selector/infrastructure/filesystem"
	"segment-selector/infrastructure/queue"

	"go.uber.org/zap"
)

// mediaDeps holds the production ffmpeg adapters built from config
type mediaDeps struct {
	prober      *ffmpeg.Prober
	trimmer     *ffmpeg.Trimmer
	extractor   *ffmpeg.Extractor
	fileChecker *filesystem.Checker
}

func newMediaDeps(c *config.Config, logger *zap.Logger, reencode bool) *mediaDeps {
	runner := &ffmpeg.ExecCommandRunner{Logger: logger}
	fileChecker := filesystem.NewChecker()
	return &mediaDeps{
		prober: ffmpeg.NewProber(
			ffmpeg.WithFFprobePath(c.FFmpeg.FFprobePath),
			ffmpeg.WithProberCommandRunner(runner),
			ffmpeg.WithFileChecker(fileChecker),
		),
		trimmer: ffmpeg.NewTrimmer(
			ffmpeg.WithFFmpegPath(c.FFmpeg.FFmpegPath),
			ffmpeg.WithCommandRunner(runner),
			ffmpeg.WithReencode(reencode),
		),
		extractor: ffmpeg.NewExtractor(
			ffmpeg.WithExtractorFFmpegPath(c.FFmpeg.FFmpegPath),
			ffmpeg.WithExtractorCommandRunner(runner),
		),
		fileChecker: fileChecker,
	}
}

// clipService builds a ClipService writing into the configured directories.
// audio makes every clip also produce an MP3
func (d *mediaDeps) clipService(c *config.Config, logger *zap.Logger, audio bool) (*appvideo.ClipService, error) {
	if err := d.fileChecker.EnsureDir(c.Paths.ClipsDirectory); err != nil {
		return nil, err
	}
	if err := d.fileChecker.EnsureDir(c.Paths.AudioDirectory); err != nil {
		return nil, err
	}

	extract := appvideo.NewExtractService(d.extractor, d.fileChecker, c.Paths.AudioDirectory, c.Audio.Bitrate)
	opts := []appvideo.ClipOption{appvideo.WithLogger(logger)}
	if audio {
		opts = append(opts, appvideo.WithAudio(extract))
	}
	return appvideo.NewClipService(d.trimmer, d.fileChecker, c.Paths.ClipsDirectory, opts...), nil
}

// verifyFFmpeg fails fast when the ffmpeg binary is missing
func verifyFFmpeg(ctx context.Context, trimmer interface{ VerifyInstalled(context.Context) error }) error {
	verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := trimmer.VerifyInstalled(verifyCtx); err != nil {
		return fmt.Errorf("ffmpeg verification failed: %w", err)
	}
	return nil
}

// newQueueConsumer connects to Redis when a queue is configured.
// It returns a nil consumer and a no-op closer otherwise
func newQueueConsumer(ctx context.Context, c *config.Config, logger *zap.Logger) (selection.Consumer, func(), error) {
	if c.Queue.RedisAddr == "" {
		return nil, func() {}, nil
	}

	client, err := queue.Connect(ctx, c.Queue)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("submission queue connected", zap.String("addr", c.Queue.RedisAddr), zap.String("key", c.Queue.Key))

	closer := func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	return queue.NewRedisConsumer(client, c.Queue.Key, logger), closer, nil
}

// ProductionFileFinder implements process.FileFinder for production use
type ProductionFileFinder struct{}

// FindNewestFile returns the most recently modified file in dir with ext
func (f *ProductionFileFinder) FindNewestFile(dir, ext string) (string, error) {
	files, err := f.ListFiles(dir, ext)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no %s files found in %s", ext, dir)
	}

	var newest string
	var newestMod time.Time
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no readable %s files in %s", ext, dir)
	}
	return newest, nil
}

// ListFiles returns the files in dir with ext
func (f *ProductionFileFinder) ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ext {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}
