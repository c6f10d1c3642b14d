package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay collapses the burst of events an editor produces on save
const reloadDelay = 100 * time.Millisecond

// ReloadFunc receives the freshly loaded configuration
type ReloadFunc func(cfg *Config)

// PrepareFunc adjusts a freshly loaded configuration before subscribers see it,
// e.g. to re-apply environment and flag overrides
type PrepareFunc func(cfg *Config) error

// Watcher reloads the config file when it changes and hands the result to subscribers
type Watcher struct {
	path   string
	logger *zap.Logger

	mu          sync.Mutex
	prepare     PrepareFunc
	subscribers []ReloadFunc
	current     *Config
}

// NewWatcher creates a watcher for the config file at path
func NewWatcher(path string, current *Config, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:    path,
		logger:  logger,
		current: current,
	}
}

// Subscribe registers fn to be called after every successful reload
func (w *Watcher) Subscribe(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// OnLoad sets the hook run on every reloaded config. Without it a reload
// sees only what the file says
func (w *Watcher) OnLoad(fn PrepareFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prepare = fn
}

// Current returns the most recently loaded configuration
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run watches the config file until ctx is cancelled.
// The parent directory is watched so that atomic rename-on-save is seen
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDelay)
			fire = timer.C

		case <-fire:
			fire = nil
			w.Reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Reload reads the file now and notifies subscribers.
// A file that fails to load is logged and the previous config stays in effect
func (w *Watcher) Reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config",
			zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	prepare := w.prepare
	w.mu.Unlock()
	if prepare != nil {
		if err := prepare(cfg); err != nil {
			w.logger.Warn("config reload failed, keeping previous config",
				zap.String("path", w.path), zap.Error(err))
			return
		}
	}

	w.mu.Lock()
	w.current = cfg
	subs := append([]ReloadFunc(nil), w.subscribers...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.path), zap.Int("plans", len(cfg.Plans)))
	for _, fn := range subs {
		fn(cfg)
	}
}
