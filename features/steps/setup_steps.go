//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"segment-selector/cmd"
	"segment-selector/infrastructure/config"

	"github.com/cucumber/godog"
)

type setupContext struct {
	tempDir         string
	configPath      string
	setupCancelled  bool
	originalContent string
	output          *bytes.Buffer
	err             error
}

var SharedSetupContext = &setupContext{}

// MockPrompter implements cmd.Prompter for testing
type MockPrompter struct {
	inputResponses   []string
	confirmResponses []bool
	selectResponses  []string
	inputIndex       int
	confirmIndex     int
	selectIndex      int
}

func NewMockPrompter(inputs []string, confirms []bool) *MockPrompter {
	return &MockPrompter{
		inputResponses:   inputs,
		confirmResponses: confirms,
	}
}

func (m *MockPrompter) Input(message string, defaultValue string) (string, error) {
	if m.inputIndex >= len(m.inputResponses) {
		if defaultValue != "" {
			return defaultValue, nil
		}
		return "", fmt.Errorf("no more input responses available for message: %s", message)
	}
	response := m.inputResponses[m.inputIndex]
	m.inputIndex++
	return response, nil
}

func (m *MockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if m.confirmIndex >= len(m.confirmResponses) {
		return defaultValue, nil
	}
	response := m.confirmResponses[m.confirmIndex]
	m.confirmIndex++
	return response, nil
}

func (m *MockPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	if m.selectIndex >= len(m.selectResponses) {
		return "", fmt.Errorf("no more select responses available for message: %s", message)
	}
	response := m.selectResponses[m.selectIndex]
	m.selectIndex++
	for _, opt := range options {
		if opt == response {
			return response, nil
		}
	}
	return "", fmt.Errorf("%q is not one of %v", response, options)
}

var _ cmd.Prompter = (*MockPrompter)(nil)

func InitializeSetupScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedSetupContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		// Create temp directory for each scenario
		tempDir, err := os.MkdirTemp("", "setup-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config", "config.yaml")
		testCtx.setupCancelled = false
		testCtx.originalContent = ""
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		// Cleanup temp directory
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^no config file exists for setup$`, testCtx.noConfigFileExistsForSetup)
	ctx.Step(`^a config file already exists for setup$`, testCtx.aConfigFileAlreadyExistsForSetup)
	ctx.Step(`^I run the setup command with inputs:$`, testCtx.iRunTheSetupCommandWithInputs)
	ctx.Step(`^I attempt the setup command with inputs:$`, testCtx.iAttemptTheSetupCommandWithInputs)
	ctx.Step(`^I run the setup command with confirmation "([^"]*)"$`, testCtx.iRunTheSetupCommandWithConfirmation)
	ctx.Step(`^I run the setup command with confirmation "([^"]*)" and inputs:$`, testCtx.iRunTheSetupCommandWithConfirmationAndInputs)
	ctx.Step(`^a config file should exist$`, testCtx.aConfigFileShouldExist)
	ctx.Step(`^the config should have source_directory "([^"]*)"$`, testCtx.theConfigShouldHaveSourceDirectory)
	ctx.Step(`^the config should have clips_directory "([^"]*)"$`, testCtx.theConfigShouldHaveClipsDirectory)
	ctx.Step(`^the config should have audio_directory "([^"]*)"$`, testCtx.theConfigShouldHaveAudioDirectory)
	ctx.Step(`^the config should have min_span_seconds (\d+(?:\.\d+)?)$`, testCtx.theConfigShouldHaveMinSpanSeconds)
	ctx.Step(`^the config should have default_plan "([^"]*)"$`, testCtx.theConfigShouldHaveDefaultPlan)
	ctx.Step(`^the config should have server addr "([^"]*)"$`, testCtx.theConfigShouldHaveServerAddr)
	ctx.Step(`^the config should not use a queue$`, testCtx.theConfigShouldNotUseAQueue)
	ctx.Step(`^the config should use the queue "([^"]*)" on "([^"]*)"$`, testCtx.theConfigShouldUseTheQueue)
	ctx.Step(`^the setup should be cancelled$`, testCtx.theSetupShouldBeCancelled)
	ctx.Step(`^the setup should fail with "([^"]*)"$`, testCtx.theSetupShouldFailWith)
	ctx.Step(`^the existing config should be unchanged$`, testCtx.theExistingConfigShouldBeUnchanged)
}

func (s *setupContext) noConfigFileExistsForSetup() error {
	// Just ensure the config path directory exists but no config file
	configDir := filepath.Dir(s.configPath)
	return os.MkdirAll(configDir, 0755)
}

func (s *setupContext) aConfigFileAlreadyExistsForSetup() error {
	configDir := filepath.Dir(s.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	content := `selection:
  min_span_seconds: 5
  default_plan: "free"
plans:
  free:
    name: "Free"
    max_span_seconds: 300
paths:
  source_directory: "/original/source"
  clips_directory: "/original/clips"
  audio_directory: "/original/audio"
`
	s.originalContent = content
	return os.WriteFile(s.configPath, []byte(content), 0644)
}

func (s *setupContext) run(prompter *MockPrompter) error {
	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath, s.output)
	return s.err
}

func (s *setupContext) iRunTheSetupCommandWithInputs(table *godog.Table) error {
	if err := s.run(parseInputTable(table, nil)); err != nil {
		return fmt.Errorf("setup command failed: %w", err)
	}
	return nil
}

func (s *setupContext) iAttemptTheSetupCommandWithInputs(table *godog.Table) error {
	s.run(parseInputTable(table, nil))
	return nil
}

func (s *setupContext) iRunTheSetupCommandWithConfirmation(confirmation string) error {
	confirm := strings.ToLower(confirmation) == "y"
	s.run(NewMockPrompter([]string{}, []bool{confirm}))
	if !confirm {
		s.setupCancelled = strings.Contains(s.output.String(), "Setup cancelled.")
	}
	return nil
}

func (s *setupContext) iRunTheSetupCommandWithConfirmationAndInputs(confirmation string, table *godog.Table) error {
	confirm := strings.ToLower(confirmation) == "y"
	// The overwrite confirmation comes first
	if err := s.run(parseInputTable(table, []bool{confirm})); err != nil {
		return fmt.Errorf("setup command failed: %w", err)
	}
	return nil
}

// parseInputTable sorts | prompt | value | rows into the prompter's queues.
// "default plan" is a select; prompts starting with "push" are confirms
func parseInputTable(table *godog.Table, confirms []bool) *MockPrompter {
	var inputs, selects []string

	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		prompt := strings.ToLower(row.Cells[0].Value)
		value := row.Cells[1].Value

		switch {
		case strings.HasPrefix(prompt, "push"):
			confirms = append(confirms, strings.ToLower(value) == "y")
		case prompt == "default plan":
			selects = append(selects, value)
		default:
			inputs = append(inputs, value)
		}
	}

	prompter := NewMockPrompter(inputs, confirms)
	prompter.selectResponses = selects
	return prompter
}

func (s *setupContext) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (s *setupContext) aConfigFileShouldExist() error {
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist at %s", s.configPath)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveSourceDirectory(expected string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Paths.SourceDirectory != expected {
		return fmt.Errorf("expected source_directory %q, got %q", expected, cfg.Paths.SourceDirectory)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveClipsDirectory(expected string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Paths.ClipsDirectory != expected {
		return fmt.Errorf("expected clips_directory %q, got %q", expected, cfg.Paths.ClipsDirectory)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveAudioDirectory(expected string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Paths.AudioDirectory != expected {
		return fmt.Errorf("expected audio_directory %q, got %q", expected, cfg.Paths.AudioDirectory)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveMinSpanSeconds(expected float64) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Selection.MinSpanSeconds != expected {
		return fmt.Errorf("expected min_span_seconds %v, got %v", expected, cfg.Selection.MinSpanSeconds)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveDefaultPlan(expected string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Selection.DefaultPlan != expected {
		return fmt.Errorf("expected default_plan %q, got %q", expected, cfg.Selection.DefaultPlan)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveServerAddr(expected string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.Addr != expected {
		return fmt.Errorf("expected server addr %q, got %q", expected, cfg.Server.Addr)
	}
	return nil
}

func (s *setupContext) theConfigShouldNotUseAQueue() error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Queue.RedisAddr != "" {
		return fmt.Errorf("expected no redis_addr, got %q", cfg.Queue.RedisAddr)
	}
	return nil
}

func (s *setupContext) theConfigShouldUseTheQueue(key, addr string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Queue.RedisAddr != addr || cfg.Queue.Key != key {
		return fmt.Errorf("expected queue %q on %q, got %q on %q", key, addr, cfg.Queue.Key, cfg.Queue.RedisAddr)
	}
	return nil
}

func (s *setupContext) theSetupShouldBeCancelled() error {
	if !s.setupCancelled {
		return fmt.Errorf("expected setup to be cancelled")
	}
	return nil
}

func (s *setupContext) theSetupShouldFailWith(text string) error {
	return expectErrorContaining(s.err, text)
}

func (s *setupContext) theExistingConfigShouldBeUnchanged() error {
	content, err := os.ReadFile(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if string(content) != s.originalContent {
		return fmt.Errorf("config content was changed")
	}
	return nil
}
