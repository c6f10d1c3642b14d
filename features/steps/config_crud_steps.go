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

type configCrudContext struct {
	tempDir    string
	configPath string
	config     *config.Config
	output     *bytes.Buffer
	err        error
}

var SharedConfigCrudContext = &configCrudContext{}

func InitializeConfigCrudScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedConfigCrudContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		// Create temp directory for each scenario
		tempDir, err := os.MkdirTemp("", "config-crud-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config.yaml")
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		testCtx.config = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		// Cleanup temp directory
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	// Background
	ctx.Step(`^a config file exists with initial data$`, testCtx.aConfigFileExistsWithInitialData)

	// Plan steps
	ctx.Step(`^I run config add plan with key "([^"]*)" name "([^"]*)" and max span (\d+)$`, testCtx.iRunConfigAddPlan)
	ctx.Step(`^I run config list plans$`, testCtx.iRunConfigListPlans)
	ctx.Step(`^I run config list "([^"]*)"$`, testCtx.iRunConfigList)
	ctx.Step(`^I run config update plan "([^"]*)" with max span (\d+)$`, testCtx.iRunConfigUpdatePlanMaxSpan)
	ctx.Step(`^I run config remove plan "([^"]*)"$`, testCtx.iRunConfigRemovePlan)
	ctx.Step(`^I run config default plan "([^"]*)"$`, testCtx.iRunConfigDefaultPlan)
	ctx.Step(`^the config should contain plan "([^"]*)" with name "([^"]*)" and max span (\d+)$`, testCtx.theConfigShouldContainPlan)
	ctx.Step(`^the config should not contain plan "([^"]*)"$`, testCtx.theConfigShouldNotContainPlan)
	ctx.Step(`^the default plan should now be "([^"]*)"$`, testCtx.theDefaultPlanShouldNowBe)

	// Common assertions
	ctx.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	ctx.Step(`^the command should fail with "([^"]*)"$`, testCtx.theCommandShouldFailWith)
	ctx.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
}

func (c *configCrudContext) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.config = cfg
	return nil
}

func (c *configCrudContext) saveConfig() error {
	return config.Save(c.config, c.configPath)
}

// --- Background ---

func (c *configCrudContext) aConfigFileExistsWithInitialData() error {
	c.config = &config.Config{
		Selection: config.SelectionConfig{
			MinSpanSeconds: 5,
			MinGapSeconds:  5,
			DefaultPlan:    "free",
		},
		Plans: map[string]config.PlanConfig{
			"free":    {Name: "Free", MaxSpanSeconds: 300},
			"starter": {Name: "Starter", MaxSpanSeconds: 1200},
		},
		Paths: config.PathsConfig{
			SourceDirectory: "/source",
			ClipsDirectory:  "/clips",
			AudioDirectory:  "/audio",
		},
		Audio: config.AudioConfig{
			Bitrate: "192k",
		},
	}
	return c.saveConfig()
}

// --- Plan steps ---

func (c *configCrudContext) iRunConfigAddPlan(key, name string, maxSpan float64) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigAddWithDependencies(c.config, c.configPath, "plan", key, name, maxSpan, c.output)
	return nil
}

func (c *configCrudContext) iRunConfigListPlans() error {
	return c.iRunConfigList("plans")
}

func (c *configCrudContext) iRunConfigList(entity string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigListWithDependencies(c.config, c.configPath, entity, c.output)
	return nil
}

func (c *configCrudContext) iRunConfigUpdatePlanMaxSpan(key string, maxSpan float64) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigUpdateWithDependencies(c.config, c.configPath, "plan", key, "", maxSpan, c.output)
	return nil
}

func (c *configCrudContext) iRunConfigRemovePlan(key string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigRemoveWithDependencies(c.config, c.configPath, "plan", key, c.output)
	return nil
}

func (c *configCrudContext) iRunConfigDefaultPlan(key string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigDefaultWithDependencies(c.config, c.configPath, "plan", key, c.output)
	return nil
}

func (c *configCrudContext) theConfigShouldContainPlan(key, name string, maxSpan float64) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	key = strings.ToLower(key)
	p, exists := c.config.Plans[key]
	if !exists {
		return fmt.Errorf("plan %q not found in config", key)
	}
	if p.Name != name {
		return fmt.Errorf("expected plan %q to have name %q, got %q", key, name, p.Name)
	}
	if p.MaxSpanSeconds != maxSpan {
		return fmt.Errorf("expected plan %q to have max span %v, got %v", key, maxSpan, p.MaxSpanSeconds)
	}
	return nil
}

func (c *configCrudContext) theConfigShouldNotContainPlan(key string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	key = strings.ToLower(key)
	if _, exists := c.config.Plans[key]; exists {
		return fmt.Errorf("plan %q should not exist in config", key)
	}
	return nil
}

func (c *configCrudContext) theDefaultPlanShouldNowBe(key string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	if c.config.Selection.DefaultPlan != key {
		return fmt.Errorf("expected default plan %q, got %q", key, c.config.Selection.DefaultPlan)
	}
	return nil
}

// --- Common assertions ---

func (c *configCrudContext) theCommandShouldSucceed() error {
	if c.err != nil {
		return fmt.Errorf("expected command to succeed but got error: %v\nOutput: %s", c.err, c.output.String())
	}
	return nil
}

func (c *configCrudContext) theCommandShouldFailWith(expectedError string) error {
	if c.err == nil {
		return fmt.Errorf("expected command to fail with %q but it succeeded\nOutput: %s", expectedError, c.output.String())
	}
	errStr := strings.ToLower(c.err.Error())
	expected := strings.ToLower(expectedError)
	if !strings.Contains(errStr, expected) {
		return fmt.Errorf("expected error to contain %q but got %q", expectedError, c.err.Error())
	}
	return nil
}

func (c *configCrudContext) theOutputShouldContain(expected string) error {
	output := c.output.String()
	if !strings.Contains(output, expected) {
		return fmt.Errorf("expected output to contain %q but got:\n%s", expected, output)
	}
	return nil
}
