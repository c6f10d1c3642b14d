//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"segment-selector/cmd"
	"segment-selector/domain/selection"
	"segment-selector/infrastructure/config"

	"github.com/cucumber/godog"
)

// editorContext holds test state for interactive editor scenarios
type editorContext struct {
	cfg        *config.Config
	prober     *mockProber
	consumer   *recordingConsumer
	output     *bytes.Buffer
	submission *selection.Submission
	err        error
}

// SharedEditorContext is reset before each scenario via Before hook
var SharedEditorContext *editorContext

func getEditorContext() *editorContext {
	return SharedEditorContext
}

func InitializeEditorScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		SharedEditorContext = &editorContext{
			cfg:      config.Default(),
			prober:   &mockProber{media: make(map[string]selection.MediaReference)},
			consumer: &recordingConsumer{},
			output:   &bytes.Buffer{},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		SharedEditorContext = nil
		return c, nil
	})

	ctx.Step(`^the video "([^"]*)" is (\d+) seconds long and titled "([^"]*)"$`, theVideoIsSecondsLongAndTitled)
	ctx.Step(`^the editor consumer fails$`, theEditorConsumerFails)
	ctx.Step(`^I edit "([^"]*)" with:$`, iEditWith)
	ctx.Step(`^I edit "([^"]*)" on plan "([^"]*)" with:$`, iEditOnPlanWith)
	ctx.Step(`^the editor should submit (\d+(?:\.\d+)?) to (\d+(?:\.\d+)?)$`, theEditorShouldSubmit)
	ctx.Step(`^the editor should not submit$`, theEditorShouldNotSubmit)
	ctx.Step(`^the editor output should contain "([^"]*)"$`, theEditorOutputShouldContain)
	ctx.Step(`^the editor should fail with "([^"]*)"$`, theEditorShouldFailWith)
}

func theVideoIsSecondsLongAndTitled(source string, duration float64, title string) error {
	e := getEditorContext()
	media, err := selection.NewMediaReference(source, duration)
	if err != nil {
		return err
	}
	media.Title = title
	e.prober.media[source] = media
	return nil
}

func theEditorConsumerFails() error {
	getEditorContext().consumer.shouldFail = true
	return nil
}

// parseEditorTable turns | action | answer | rows into menu choices and typed answers
func parseEditorTable(table *godog.Table) (actions []string, answers []string) {
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		actions = append(actions, row.Cells[0].Value)
		if answer := row.Cells[1].Value; answer != "" {
			answers = append(answers, answer)
		}
	}
	return actions, answers
}

func runEditor(source, plan string, table *godog.Table) {
	e := getEditorContext()
	actions, answers := parseEditorTable(table)
	prompter := NewMockPrompter(answers, nil)
	prompter.selectResponses = actions

	e.submission, e.err = cmd.RunSelectWithDependencies(
		context.Background(),
		e.cfg,
		e.prober,
		e.consumer,
		prompter,
		source,
		plan,
		e.output,
	)
}

func iEditWith(source string, table *godog.Table) error {
	runEditor(source, "", table)
	return nil
}

func iEditOnPlanWith(source, plan string, table *godog.Table) error {
	runEditor(source, plan, table)
	return nil
}

func theEditorShouldSubmit(start, end float64) error {
	e := getEditorContext()
	if e.err != nil {
		return fmt.Errorf("editor failed: %v", e.err)
	}
	if e.submission == nil {
		return fmt.Errorf("editor did not submit, output:\n%s", e.output.String())
	}
	if !approxEqual(e.submission.Start, start) || !approxEqual(e.submission.End, end) {
		return fmt.Errorf("expected submission %v to %v, got %v to %v", start, end, e.submission.Start, e.submission.End)
	}
	if len(e.consumer.submissions) != 1 {
		return fmt.Errorf("expected the consumer to receive 1 submission, got %d", len(e.consumer.submissions))
	}
	return nil
}

func theEditorShouldNotSubmit() error {
	e := getEditorContext()
	if e.err != nil {
		return fmt.Errorf("editor failed: %v", e.err)
	}
	if e.submission != nil || len(e.consumer.submissions) != 0 {
		return fmt.Errorf("expected no submission, got %+v", e.submission)
	}
	return nil
}

func theEditorOutputShouldContain(text string) error {
	e := getEditorContext()
	if !strings.Contains(e.output.String(), text) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", text, e.output.String())
	}
	return nil
}

func theEditorShouldFailWith(text string) error {
	return expectErrorContaining(getEditorContext().err, text)
}
