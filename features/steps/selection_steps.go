//go:build integration

package steps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"segment-selector/domain/selection"

	"github.com/cucumber/godog"
)

// recordingConsumer collects submissions handed off by a session
type recordingConsumer struct {
	submissions []selection.Submission
	shouldFail  bool
}

func (c *recordingConsumer) Submit(ctx context.Context, sub selection.Submission) error {
	if c.shouldFail {
		return errors.New("queue unavailable")
	}
	c.submissions = append(c.submissions, sub)
	return nil
}

// selectionContext holds test state for selection scenarios
type selectionContext struct {
	constraints selection.Constraints
	session     *selection.Session
	consumer    *recordingConsumer
	submission  *selection.Submission
	actionErr   error
	proceedErr  error
}

// SharedSelectionContext is reset before each scenario via Before hook
var SharedSelectionContext *selectionContext

func getSelectionContext() *selectionContext {
	return SharedSelectionContext
}

func InitializeSelectionScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		SharedSelectionContext = &selectionContext{
			consumer: &recordingConsumer{},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		SharedSelectionContext = nil
		return c, nil
	})

	ctx.Step(`^the plan limits are min span (\d+) and max span (\d+) seconds$`, thePlanLimitsAre)
	ctx.Step(`^the minimum gap is (\d+) seconds?$`, theMinimumGapIs)
	ctx.Step(`^a video of (\d+) seconds is loaded$`, aVideoOfSecondsIsLoaded)
	ctx.Step(`^no video is loaded$`, noVideoIsLoaded)
	ctx.Step(`^the consumer is unavailable$`, theConsumerIsUnavailable)
	ctx.Step(`^I move the (start|end) to (\d+(?:\.\d+)?)$`, iMoveTheBoundaryTo)
	ctx.Step(`^I click at (\d+(?:\.\d+)?)% of the track$`, iClickAtPercentOfTheTrack)
	ctx.Step(`^I click at pixel (\d+) of an (\d+) pixel track$`, iClickAtPixelOfTrack)
	ctx.Step(`^I reset the selection$`, iResetTheSelection)
	ctx.Step(`^the plan maximum drops to (\d+) seconds$`, thePlanMaximumDropsTo)
	ctx.Step(`^I proceed$`, iProceed)
	ctx.Step(`^the selection should be (\d+(?:\.\d+)?) to (\d+(?:\.\d+)?)$`, theSelectionShouldBe)
	ctx.Step(`^the selection should span (\d+(?:\.\d+)?) seconds$`, theSelectionShouldSpan)
	ctx.Step(`^the session should be "([^"]*)"$`, theSessionShouldBe)
	ctx.Step(`^proceeding should fail with "([^"]*)"$`, proceedingShouldFailWith)
	ctx.Step(`^the action should fail with "([^"]*)"$`, theActionShouldFailWith)
	ctx.Step(`^nothing should have been submitted$`, nothingShouldHaveBeenSubmitted)
	ctx.Step(`^the submission should be (\d+(?:\.\d+)?) to (\d+(?:\.\d+)?) lasting (\d+(?:\.\d+)?) seconds$`, theSubmissionShouldBe)
}

func thePlanLimitsAre(minSpan, maxSpan float64) error {
	s := getSelectionContext()
	s.constraints.MinSpan = minSpan
	s.constraints.MaxSpan = maxSpan
	return nil
}

func theMinimumGapIs(gap float64) error {
	s := getSelectionContext()
	s.constraints.MinGap = gap
	return nil
}

func newSelectionSession() error {
	s := getSelectionContext()
	session, err := selection.NewSession(s.constraints)
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}
	s.session = session
	return nil
}

func aVideoOfSecondsIsLoaded(duration float64) error {
	if err := newSelectionSession(); err != nil {
		return err
	}
	s := getSelectionContext()
	media, err := selection.NewMediaReference("talk.mp4", duration)
	if err != nil {
		return err
	}
	if _, err := s.session.Load(media); err != nil {
		return fmt.Errorf("failed to load media: %v", err)
	}
	return nil
}

func noVideoIsLoaded() error {
	return newSelectionSession()
}

func theConsumerIsUnavailable() error {
	getSelectionContext().consumer.shouldFail = true
	return nil
}

func iMoveTheBoundaryTo(boundary string, t float64) error {
	s := getSelectionContext()
	b, err := selection.ParseBoundary(boundary)
	if err != nil {
		return err
	}
	_, s.actionErr = s.session.Move(b, t)
	return nil
}

func iClickAtPercentOfTheTrack(pct float64) error {
	s := getSelectionContext()
	_, s.actionErr = s.session.Click(pct / 100)
	return nil
}

func iClickAtPixelOfTrack(offset, width float64) error {
	s := getSelectionContext()
	_, s.actionErr = s.session.ClickAt(offset, width)
	return nil
}

func iResetTheSelection() error {
	s := getSelectionContext()
	_, s.actionErr = s.session.Reset()
	return s.actionErr
}

func thePlanMaximumDropsTo(maxSpan float64) error {
	s := getSelectionContext()
	c := s.session.Constraints()
	c.MaxSpan = maxSpan
	return s.session.UpdateConstraints(c)
}

func iProceed() error {
	s := getSelectionContext()
	sub, err := s.session.Proceed(context.Background(), s.consumer)
	s.proceedErr = err
	if err == nil {
		s.submission = &sub
	}
	return nil
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func currentSelection() (selection.Selection, error) {
	sel, ok := getSelectionContext().session.Selection()
	if !ok {
		return sel, fmt.Errorf("no media loaded")
	}
	return sel, nil
}

func theSelectionShouldBe(start, end float64) error {
	sel, err := currentSelection()
	if err != nil {
		return err
	}
	if !approxEqual(sel.Start, start) || !approxEqual(sel.End, end) {
		return fmt.Errorf("expected selection %v to %v, got %s", start, end, sel)
	}
	return nil
}

func theSelectionShouldSpan(span float64) error {
	sel, err := currentSelection()
	if err != nil {
		return err
	}
	if !approxEqual(sel.Span(), span) {
		return fmt.Errorf("expected span %v, got %v", span, sel.Span())
	}
	return nil
}

func theSessionShouldBe(state string) error {
	s := getSelectionContext()
	if got := string(s.session.State()); got != state {
		return fmt.Errorf("expected session state %q, got %q", state, got)
	}
	return nil
}

func expectErrorContaining(err error, text string) error {
	if err == nil {
		return fmt.Errorf("expected an error containing %q but got none", text)
	}
	if !strings.Contains(err.Error(), text) {
		return fmt.Errorf("expected error containing %q, got: %v", text, err)
	}
	return nil
}

func proceedingShouldFailWith(text string) error {
	return expectErrorContaining(getSelectionContext().proceedErr, text)
}

func theActionShouldFailWith(text string) error {
	return expectErrorContaining(getSelectionContext().actionErr, text)
}

func nothingShouldHaveBeenSubmitted() error {
	s := getSelectionContext()
	if len(s.consumer.submissions) != 0 {
		return fmt.Errorf("expected no submissions, got %d", len(s.consumer.submissions))
	}
	return nil
}

func theSubmissionShouldBe(start, end, duration float64) error {
	s := getSelectionContext()
	if s.proceedErr != nil {
		return fmt.Errorf("proceed failed: %v", s.proceedErr)
	}
	if len(s.consumer.submissions) != 1 {
		return fmt.Errorf("expected 1 submission, got %d", len(s.consumer.submissions))
	}
	sub := s.consumer.submissions[0]
	if !approxEqual(sub.Start, start) || !approxEqual(sub.End, end) || !approxEqual(sub.Duration, duration) {
		return fmt.Errorf("expected submission %v to %v (%vs), got %v to %v (%vs)",
			start, end, duration, sub.Start, sub.End, sub.Duration)
	}
	return nil
}
