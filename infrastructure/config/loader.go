package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"segment-selector/domain/selection"
)

// DefaultPath is where commands look for the config file when --config is not given
const DefaultPath = "config/config.yaml"

// ErrPlanNotFound is returned when a plan tier is not configured
var ErrPlanNotFound = errors.New("plan not found")

// Config represents the complete application configuration
type Config struct {
	Selection SelectionConfig       `yaml:"selection"`
	Plans     map[string]PlanConfig `yaml:"plans"`
	Paths     PathsConfig           `yaml:"paths"`
	Audio     AudioConfig           `yaml:"audio"`
	FFmpeg    FFmpegConfig          `yaml:"ffmpeg"`
	Server    ServerConfig          `yaml:"server"`
	Queue     QueueConfig           `yaml:"queue"`
	Logging   LoggingConfig         `yaml:"logging"`
}

// SelectionConfig contains limits shared by every plan tier
type SelectionConfig struct {
	MinSpanSeconds float64 `yaml:"min_span_seconds"`
	MinGapSeconds  float64 `yaml:"min_gap_seconds"`
	DefaultPlan    string  `yaml:"default_plan"`
}

// PlanConfig describes a subscription tier
type PlanConfig struct {
	Name           string  `yaml:"name"`
	MaxSpanSeconds float64 `yaml:"max_span_seconds"`
}

// PathsConfig contains media directories
type PathsConfig struct {
	SourceDirectory string `yaml:"source_directory"`
	ClipsDirectory  string `yaml:"clips_directory"`
	AudioDirectory  string `yaml:"audio_directory"`
}

// AudioConfig contains audio extraction settings
type AudioConfig struct {
	Bitrate string `yaml:"bitrate"`
}

// FFmpegConfig points at the ffmpeg binaries
type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// QueueConfig contains the Redis submission queue settings.
// An empty RedisAddr disables the queue
type QueueConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Key           string `yaml:"key"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultPlans returns the built-in plan tiers
func DefaultPlans() map[string]PlanConfig {
	return map[string]PlanConfig{
		"free":         {Name: "Free", MaxSpanSeconds: 300},
		"starter":      {Name: "Starter", MaxSpanSeconds: 1200},
		"professional": {Name: "Professional", MaxSpanSeconds: 3600},
		"enterprise":   {Name: "Enterprise", MaxSpanSeconds: 7200},
	}
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero values
func (c *Config) ApplyDefaults() {
	if c.Selection.MinSpanSeconds <= 0 {
		c.Selection.MinSpanSeconds = 5
	}
	if c.Selection.MinGapSeconds <= 0 {
		c.Selection.MinGapSeconds = selection.DefaultMinGap
	}
	if len(c.Plans) == 0 {
		c.Plans = DefaultPlans()
	}
	if c.Selection.DefaultPlan == "" {
		c.Selection.DefaultPlan = "free"
	}
	if c.Paths.ClipsDirectory == "" {
		c.Paths.ClipsDirectory = "clips"
	}
	if c.Paths.AudioDirectory == "" {
		c.Paths.AudioDirectory = "audio"
	}
	if c.Audio.Bitrate == "" {
		c.Audio.Bitrate = "192k"
	}
	if c.FFmpeg.FFmpegPath == "" {
		c.FFmpeg.FFmpegPath = "ffmpeg"
	}
	if c.FFmpeg.FFprobePath == "" {
		c.FFmpeg.FFprobePath = "ffprobe"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Queue.Key == "" {
		c.Queue.Key = "segment-selector:submissions"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Load reads and parses the configuration from the specified YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads the given .env files (if present) and applies
// SEGSEL_* overrides. Variables already set in the environment win
// over values from the files
func (c *Config) LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	overrides := []struct {
		key    string
		target *string
	}{
		{"SEGSEL_SERVER_ADDR", &c.Server.Addr},
		{"SEGSEL_REDIS_ADDR", &c.Queue.RedisAddr},
		{"SEGSEL_REDIS_PASSWORD", &c.Queue.RedisPassword},
		{"SEGSEL_LOG_LEVEL", &c.Logging.Level},
		{"SEGSEL_FFMPEG_PATH", &c.FFmpeg.FFmpegPath},
		{"SEGSEL_FFPROBE_PATH", &c.FFmpeg.FFprobePath},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.target = v
		}
	}

	return nil
}

// Validate checks that every plan yields usable constraints
func (c *Config) Validate() error {
	if _, ok := c.Plans[c.Selection.DefaultPlan]; !ok {
		return fmt.Errorf("default plan %q: %w", c.Selection.DefaultPlan, ErrPlanNotFound)
	}
	for key := range c.Plans {
		cons, err := c.ConstraintsFor(key)
		if err != nil {
			return err
		}
		if err := cons.Validate(); err != nil {
			return fmt.Errorf("plan %q: %w", key, err)
		}
	}
	return nil
}

// ConstraintsFor resolves a plan tier into selection constraints.
// An empty key selects the default plan
func (c *Config) ConstraintsFor(planKey string) (selection.Constraints, error) {
	_, cons, err := c.ResolvePlan(planKey)
	return cons, err
}

// ResolvePlan is ConstraintsFor that also returns the canonical plan key
func (c *Config) ResolvePlan(planKey string) (string, selection.Constraints, error) {
	planKey = strings.ToLower(strings.TrimSpace(planKey))
	if planKey == "" {
		planKey = c.Selection.DefaultPlan
	}

	plan, ok := c.Plans[planKey]
	if !ok {
		return "", selection.Constraints{}, fmt.Errorf("%w: %q", ErrPlanNotFound, planKey)
	}

	return planKey, selection.Constraints{
		MinSpan: c.Selection.MinSpanSeconds,
		MaxSpan: plan.MaxSpanSeconds,
		MinGap:  c.Selection.MinGapSeconds,
	}, nil
}

// PlanKeys returns the configured plan keys ordered by their span cap
func (c *Config) PlanKeys() []string {
	keys := make([]string, 0, len(c.Plans))
	for k := range c.Plans {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := c.Plans[keys[i]], c.Plans[keys[j]]
		if pi.MaxSpanSeconds != pj.MaxSpanSeconds {
			return pi.MaxSpanSeconds < pj.MaxSpanSeconds
		}
		return keys[i] < keys[j]
	})
	return keys
}
