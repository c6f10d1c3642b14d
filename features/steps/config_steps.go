//go:build integration

package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"segment-selector/domain/selection"
	"segment-selector/infrastructure/config"

	"github.com/cucumber/godog"
)

type configContext struct {
	configPath  string
	cfg         *config.Config
	loadErr     error
	constraints selection.Constraints
	resolveErr  error
	envKeys     []string
}

// SharedConfigContext is reset before each scenario via After hook
var SharedConfigContext = &configContext{}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedConfigContext

	// Reset context after each scenario
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		for _, key := range testCtx.envKeys {
			os.Unsetenv(key)
		}
		*testCtx = configContext{}
		return c, nil
	})

	ctx.Step(`^a configuration file exists at "([^"]*)"$`, testCtx.aConfigurationFileExistsAt)
	ctx.Step(`^no configuration file exists at "([^"]*)"$`, testCtx.noConfigurationFileExistsAt)
	ctx.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, testCtx.theEnvironmentVariableIs)
	ctx.Step(`^I load the configuration$`, testCtx.iLoadTheConfiguration)
	ctx.Step(`^I attempt to load the configuration$`, testCtx.iAttemptToLoadTheConfiguration)
	ctx.Step(`^I apply the environment$`, testCtx.iApplyTheEnvironment)
	ctx.Step(`^I resolve the constraints for plan "([^"]*)"$`, testCtx.iResolveTheConstraintsForPlan)
	ctx.Step(`^the clips directory should be "([^"]*)"$`, testCtx.theClipsDirectoryShouldBe)
	ctx.Step(`^the audio directory should be "([^"]*)"$`, testCtx.theAudioDirectoryShouldBe)
	ctx.Step(`^the default plan should be "([^"]*)"$`, testCtx.theDefaultPlanShouldBe)
	ctx.Step(`^plan "([^"]*)" should allow selections up to (\d+) seconds$`, testCtx.planShouldAllowSelectionsUpTo)
	ctx.Step(`^the constraints should be min span (\d+), max span (\d+) and min gap (\d+)$`, testCtx.theConstraintsShouldBe)
	ctx.Step(`^resolving should fail with "([^"]*)"$`, testCtx.resolvingShouldFailWith)
	ctx.Step(`^the redis address should be "([^"]*)"$`, testCtx.theRedisAddressShouldBe)
	ctx.Step(`^I should receive an error about missing configuration$`, testCtx.iShouldReceiveAnErrorAboutMissingConfiguration)
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}

func (c *configContext) aConfigurationFileExistsAt(path string) error {
	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	c.configPath = filepath.Join(root, path)

	// Verify file actually exists
	if _, err := os.Stat(c.configPath); err != nil {
		return fmt.Errorf("expected config file at %s but it does not exist: %w", c.configPath, err)
	}
	return nil
}

func (c *configContext) noConfigurationFileExistsAt(path string) error {
	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	c.configPath = filepath.Join(root, path)
	return nil
}

func (c *configContext) theEnvironmentVariableIs(key, value string) error {
	c.envKeys = append(c.envKeys, key)
	return os.Setenv(key, value)
}

func (c *configContext) iLoadTheConfiguration() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("unexpected error loading config: %w", err)
	}
	c.cfg = cfg
	return nil
}

func (c *configContext) iAttemptToLoadTheConfiguration() error {
	cfg, err := config.Load(c.configPath)
	c.cfg = cfg
	c.loadErr = err
	return nil
}

func (c *configContext) iApplyTheEnvironment() error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	// No .env file: only the process environment applies
	return c.cfg.LoadEnv()
}

func (c *configContext) iResolveTheConstraintsForPlan(plan string) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	c.constraints, c.resolveErr = c.cfg.ConstraintsFor(plan)
	return nil
}

func (c *configContext) theClipsDirectoryShouldBe(expected string) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	if c.cfg.Paths.ClipsDirectory != expected {
		return fmt.Errorf("expected clips directory %q, got %q", expected, c.cfg.Paths.ClipsDirectory)
	}
	return nil
}

func (c *configContext) theAudioDirectoryShouldBe(expected string) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	if c.cfg.Paths.AudioDirectory != expected {
		return fmt.Errorf("expected audio directory %q, got %q", expected, c.cfg.Paths.AudioDirectory)
	}
	return nil
}

func (c *configContext) theDefaultPlanShouldBe(expected string) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	if c.cfg.Selection.DefaultPlan != expected {
		return fmt.Errorf("expected default plan %q, got %q", expected, c.cfg.Selection.DefaultPlan)
	}
	return nil
}

func (c *configContext) planShouldAllowSelectionsUpTo(plan string, maxSpan float64) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	p, ok := c.cfg.Plans[plan]
	if !ok {
		return fmt.Errorf("plan %q not in config", plan)
	}
	if p.MaxSpanSeconds != maxSpan {
		return fmt.Errorf("expected plan %q max span %v, got %v", plan, maxSpan, p.MaxSpanSeconds)
	}
	return nil
}

func (c *configContext) theConstraintsShouldBe(minSpan, maxSpan, minGap float64) error {
	if c.resolveErr != nil {
		return fmt.Errorf("unexpected error resolving plan: %v", c.resolveErr)
	}
	want := selection.Constraints{MinSpan: minSpan, MaxSpan: maxSpan, MinGap: minGap}
	if c.constraints != want {
		return fmt.Errorf("expected constraints %+v, got %+v", want, c.constraints)
	}
	return nil
}

func (c *configContext) resolvingShouldFailWith(text string) error {
	if !errors.Is(c.resolveErr, config.ErrPlanNotFound) {
		return fmt.Errorf("expected ErrPlanNotFound, got %v", c.resolveErr)
	}
	return expectErrorContaining(c.resolveErr, text)
}

func (c *configContext) theRedisAddressShouldBe(expected string) error {
	if c.cfg.Queue.RedisAddr != expected {
		return fmt.Errorf("expected redis address %q, got %q", expected, c.cfg.Queue.RedisAddr)
	}
	return nil
}

func (c *configContext) iShouldReceiveAnErrorAboutMissingConfiguration() error {
	if c.loadErr == nil {
		return fmt.Errorf("expected an error but got none")
	}
	if !errors.Is(c.loadErr, os.ErrNotExist) {
		return fmt.Errorf("expected a not-exist error, got %v", c.loadErr)
	}
	return nil
}
