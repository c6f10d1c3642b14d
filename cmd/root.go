package cmd

import (
	"errors"
	"fmt"
	"os"

	"segment-selector/infrastructure/config"
	"segment-selector/infrastructure/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
	cfg      *config.Config
	cfgErr   error
)

// OutputWriter allows capturing output in tests
type OutputWriter interface {
	Write(p []byte) (n int, err error)
}

var rootCmd = &cobra.Command{
	Use:   "segment-selector",
	Short: "Select and validate a time range of a video",
	Long: `segment-selector picks a contiguous time range of a video under plan limits:

  - Interactive selection with click, move, reset and proceed
  - Non-interactive clipping by start/end timestamps
  - HTTP and WebSocket API for browser editors
  - Plan tiers with a maximum selection length

Example:
  segment-selector clip --source talk.mp4 --start 00:05:30 --end 00:09:00 --plan free`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with SEGSEL_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = config.DefaultPath
	}

	cfg, cfgErr = config.Load(cfgFile)
	if errors.Is(cfgErr, os.ErrNotExist) {
		// Built-in plans are enough to select and clip without a file
		cfg, cfgErr = config.Default(), nil
	}
	if cfgErr != nil {
		cfg = nil
		return
	}

	if err := applyOverrides(cfg); err != nil {
		cfg, cfgErr = nil, err
	}
}

// applyOverrides layers the env file, SEGSEL_* variables and --log-level
// over a loaded config. The config watcher runs it on every reload
func applyOverrides(c *config.Config) error {
	if err := c.LoadEnv(envFile); err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// requireConfig returns the loaded configuration or the reason it is missing
func requireConfig() (*config.Config, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("configuration not loaded: %w", cfgErr)
		}
		return nil, fmt.Errorf("configuration not loaded; ensure %s exists", config.DefaultPath)
	}
	return cfg, nil
}

// requireConfigFile is used by commands that edit the file in place
func requireConfigFile() (*config.Config, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return nil, fmt.Errorf("config file not found. Run 'segment-selector setup' first")
	}
	return c, nil
}

func newLogger(c *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(c.Logging, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
