package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"segment-selector/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
	Select(message string, options []string, defaultValue string) (string, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

func (p *SurveyPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	if defaultValue != "" {
		prompt.Default = defaultValue
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through setting up your configuration file
with media paths, selection limits, the default plan, and the optional
API server and Redis queue.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath
	}
	return RunSetupWithPrompter(DefaultPrompter, path, os.Stdout)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string, out OutputWriter) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Welcome to segment-selector setup!")
	fmt.Fprintln(out)

	cfg := config.Default()

	// Paths section
	if err := promptPaths(prompter, cfg); err != nil {
		return err
	}

	// Selection section
	if err := promptSelection(prompter, cfg); err != nil {
		return err
	}

	// Audio section
	if err := promptAudio(prompter, cfg); err != nil {
		return err
	}

	// Server and queue section
	if err := promptServer(prompter, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Save configuration
	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
	return nil
}

func promptPaths(prompter Prompter, cfg *config.Config) error {
	source, err := prompter.Input("Where are source videos stored? (optional)", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Paths.SourceDirectory = strings.TrimSpace(source)

	clips, err := prompter.Input("Where should clips go?", cfg.Paths.ClipsDirectory)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if clips == "" {
		return fmt.Errorf("clips directory is required")
	}
	cfg.Paths.ClipsDirectory = clips

	audio, err := prompter.Input("Where should audio files go?", cfg.Paths.AudioDirectory)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if audio == "" {
		return fmt.Errorf("audio directory is required")
	}
	cfg.Paths.AudioDirectory = audio

	return nil
}

func promptSelection(prompter Prompter, cfg *config.Config) error {
	minSpan, err := promptSeconds(prompter, "Minimum selection length in seconds?", cfg.Selection.MinSpanSeconds)
	if err != nil {
		return err
	}
	cfg.Selection.MinSpanSeconds = minSpan

	plan, err := prompter.Select("Default plan?", cfg.PlanKeys(), cfg.Selection.DefaultPlan)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Selection.DefaultPlan = plan

	return nil
}

func promptSeconds(prompter Prompter, message string, defaultValue float64) (float64, error) {
	answer, err := prompter.Input(message, strconv.FormatFloat(defaultValue, 'f', -1, 64))
	if err != nil {
		return 0, fmt.Errorf("prompt cancelled")
	}
	if answer == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(answer, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("expected a positive number of seconds, got %q", answer)
	}
	return v, nil
}

func promptAudio(prompter Prompter, cfg *config.Config) error {
	bitrate, err := prompter.Input("Audio bitrate for mp3 extraction?", "192k")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if bitrate == "" {
		bitrate = "192k"
	}
	cfg.Audio.Bitrate = bitrate
	return nil
}

func promptServer(prompter Prompter, cfg *config.Config) error {
	addr, err := prompter.Input("API listen address?", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	useQueue, err := prompter.Confirm("Push submissions onto a Redis queue?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if !useQueue {
		return nil
	}

	redisAddr, err := prompter.Input("  Redis address:", "localhost:6379")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if redisAddr == "" {
		return fmt.Errorf("redis address is required")
	}
	cfg.Queue.RedisAddr = redisAddr

	key, err := prompter.Input("  Queue key:", cfg.Queue.Key)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if key != "" {
		cfg.Queue.Key = key
	}

	return nil
}
