//go:build integration

package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	appprocess "segment-selector/application/process"
	appvideo "segment-selector/application/video"
	"segment-selector/cmd"
	"segment-selector/domain/selection"
	"segment-selector/domain/video"
	"segment-selector/infrastructure/config"

	"github.com/cucumber/godog"
)

// mockProber returns metadata for registered sources
type mockProber struct {
	media map[string]selection.MediaReference
}

func (m *mockProber) Probe(ctx context.Context, source string) (selection.MediaReference, error) {
	media, ok := m.media[source]
	if !ok {
		return selection.MediaReference{}, fmt.Errorf("ffprobe: %s: no such file", source)
	}
	return media, nil
}

// mockTrimmer records calls to Trim for verification
type mockTrimmer struct {
	calls       []trimCall
	shouldFail  bool
	fileChecker *mockFileChecker // Reference to mark output files as existing
}

type trimCall struct {
	req        *video.ClipRequest
	outputPath string
	args       []string
}

func (m *mockTrimmer) Trim(ctx context.Context, req *video.ClipRequest, outputPath string) error {
	if m.shouldFail {
		return errors.New("ffmpeg exited with status 1")
	}
	m.calls = append(m.calls, trimCall{
		req:        req,
		outputPath: outputPath,
		args: []string{
			"-ss", req.Start.String(),
			"-i", req.SourcePath,
			"-to", req.End.String(),
			"-c", "copy",
			"-y", outputPath,
		},
	})
	if m.fileChecker != nil {
		m.fileChecker.existingFiles[outputPath] = true
	}
	return nil
}

// mockFileChecker simulates file existence
type mockFileChecker struct {
	existingFiles map[string]bool
}

func (m *mockFileChecker) Exists(path string) bool {
	return m.existingFiles[path]
}

// mockFileFinder returns a fixed newest file per extension
type mockFileFinder struct {
	newest map[string]string
}

func (m *mockFileFinder) FindNewestFile(dir, ext string) (string, error) {
	if path, ok := m.newest[ext]; ok {
		return path, nil
	}
	return "", fmt.Errorf("no %s files in %s", ext, dir)
}

// mockAudioExtractor records calls to Extract
type mockAudioExtractor struct {
	calls []audioCall
}

type audioCall struct {
	req        *video.AudioExtractionRequest
	outputPath string
	args       []string
}

func (m *mockAudioExtractor) Extract(ctx context.Context, req *video.AudioExtractionRequest, outputPath string) error {
	m.calls = append(m.calls, audioCall{
		req:        req,
		outputPath: outputPath,
		args: []string{
			"-ss", req.Start.String(),
			"-i", req.SourceVideoPath,
			"-to", req.End.String(),
			"-vn",
			"-acodec", "libmp3lame",
			"-ab", req.Bitrate,
			"-y", outputPath,
		},
	})
	return nil
}

// clipContext holds test state for clip scenarios
type clipContext struct {
	cfg         *config.Config
	prober      *mockProber
	trimmer     *mockTrimmer
	extractor   *mockAudioExtractor
	fileChecker *mockFileChecker
	fileFinder  *mockFileFinder
	downstream  *recordingConsumer
	output      *bytes.Buffer
	result      *appprocess.Result
	err         error
}

// SharedClipContext is reset before each scenario via Before hook
var SharedClipContext *clipContext

func getClipContext() *clipContext {
	return SharedClipContext
}

func InitializeClipScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		fileChecker := &mockFileChecker{existingFiles: make(map[string]bool)}
		SharedClipContext = &clipContext{
			cfg:         config.Default(),
			prober:      &mockProber{media: make(map[string]selection.MediaReference)},
			trimmer:     &mockTrimmer{fileChecker: fileChecker},
			extractor:   &mockAudioExtractor{},
			fileChecker: fileChecker,
			fileFinder:  &mockFileFinder{newest: make(map[string]string)},
			downstream:  &recordingConsumer{},
			output:      &bytes.Buffer{},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		SharedClipContext = nil
		return c, nil
	})

	ctx.Step(`^the clips directory is "([^"]*)"$`, theClipsDirectoryIs)
	ctx.Step(`^the audio directory is "([^"]*)"$`, theAudioDirectoryIs)
	ctx.Step(`^the source directory is "([^"]*)"$`, theSourceDirectoryIs)
	ctx.Step(`^a (\d+) second source video at "([^"]*)"$`, aSecondSourceVideoAt)
	ctx.Step(`^the newest video in the source directory is "([^"]*)"$`, theNewestVideoInTheSourceDirectoryIs)
	ctx.Step(`^ffmpeg fails$`, ffmpegFails)
	ctx.Step(`^I clip "([^"]*)" from "([^"]*)" to "([^"]*)"$`, iClipFromTo)
	ctx.Step(`^I clip "([^"]*)" from "([^"]*)" to "([^"]*)" on plan "([^"]*)"$`, iClipFromToOnPlan)
	ctx.Step(`^I clip "([^"]*)" from "([^"]*)" to "([^"]*)" with audio$`, iClipFromToWithAudio)
	ctx.Step(`^I clip the newest video from "([^"]*)" to "([^"]*)"$`, iClipTheNewestVideoFromTo)
	ctx.Step(`^I attempt to clip "([^"]*)" from "([^"]*)" to "([^"]*)"$`, iAttemptToClipFromTo)
	ctx.Step(`^I attempt to clip "([^"]*)" from "([^"]*)" to "([^"]*)" on plan "([^"]*)"$`, iAttemptToClipFromToOnPlan)
	ctx.Step(`^the clip should be written to "([^"]*)"$`, theClipShouldBeWrittenTo)
	ctx.Step(`^the audio should be written to "([^"]*)"$`, theAudioShouldBeWrittenTo)
	ctx.Step(`^ffmpeg should have been called with arguments:$`, ffmpegShouldHaveBeenCalledWithArguments)
	ctx.Step(`^the audio extraction should have used arguments:$`, theAudioExtractionShouldHaveUsedArguments)
	ctx.Step(`^the submitted range should be (\d+(?:\.\d+)?) to (\d+(?:\.\d+)?)$`, theSubmittedRangeShouldBe)
	ctx.Step(`^the clip output should contain "([^"]*)"$`, theClipOutputShouldContain)
	ctx.Step(`^the clip should fail with "([^"]*)"$`, theClipShouldFailWith)
}

func theClipsDirectoryIs(dir string) error {
	getClipContext().cfg.Paths.ClipsDirectory = dir
	return nil
}

func theAudioDirectoryIs(dir string) error {
	getClipContext().cfg.Paths.AudioDirectory = dir
	return nil
}

func theSourceDirectoryIs(dir string) error {
	getClipContext().cfg.Paths.SourceDirectory = dir
	return nil
}

func aSecondSourceVideoAt(duration float64, path string) error {
	c := getClipContext()
	media, err := selection.NewMediaReference(path, duration)
	if err != nil {
		return err
	}
	c.prober.media[path] = media
	c.fileChecker.existingFiles[path] = true
	return nil
}

func theNewestVideoInTheSourceDirectoryIs(path string) error {
	c := getClipContext()
	c.fileFinder.newest[".mp4"] = path
	return nil
}

func ffmpegFails() error {
	getClipContext().trimmer.shouldFail = true
	return nil
}

func runClip(source, start, end, plan string, audio bool) error {
	c := getClipContext()

	extractService := appvideo.NewExtractService(c.extractor, c.fileChecker, c.cfg.Paths.AudioDirectory, c.cfg.Audio.Bitrate)
	clipper := appvideo.NewClipService(c.trimmer, c.fileChecker, c.cfg.Paths.ClipsDirectory,
		appvideo.WithAudio(extractService))

	c.result, c.err = cmd.RunClipWithDependencies(
		context.Background(),
		c.cfg,
		c.prober,
		clipper,
		c.downstream,
		c.fileChecker,
		c.fileFinder,
		appprocess.Input{
			SourcePath: source,
			StartTime:  start,
			EndTime:    end,
			Plan:       plan,
			Audio:      audio,
		},
		c.output,
	)
	return c.err
}

func iClipFromTo(source, start, end string) error {
	if err := runClip(source, start, end, "", false); err != nil {
		return fmt.Errorf("unexpected error: %v", err)
	}
	return nil
}

func iClipFromToOnPlan(source, start, end, plan string) error {
	if err := runClip(source, start, end, plan, false); err != nil {
		return fmt.Errorf("unexpected error: %v", err)
	}
	return nil
}

func iClipFromToWithAudio(source, start, end string) error {
	if err := runClip(source, start, end, "", true); err != nil {
		return fmt.Errorf("unexpected error: %v", err)
	}
	return nil
}

func iClipTheNewestVideoFromTo(start, end string) error {
	return iClipFromTo("", start, end)
}

func iAttemptToClipFromTo(source, start, end string) error {
	runClip(source, start, end, "", false)
	return nil
}

func iAttemptToClipFromToOnPlan(source, start, end, plan string) error {
	runClip(source, start, end, plan, false)
	return nil
}

func theClipShouldBeWrittenTo(expected string) error {
	c := getClipContext()
	if c.result == nil {
		return fmt.Errorf("no clip was written")
	}
	if c.result.ClipPath != expected {
		return fmt.Errorf("expected clip path %q, got %q", expected, c.result.ClipPath)
	}
	return nil
}

func theAudioShouldBeWrittenTo(expected string) error {
	c := getClipContext()
	if c.result == nil {
		return fmt.Errorf("no clip was written")
	}
	if c.result.AudioPath != expected {
		return fmt.Errorf("expected audio path %q, got %q", expected, c.result.AudioPath)
	}
	return nil
}

func containsAllArguments(table *godog.Table, args []string) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		expectedArg := row.Cells[0].Value
		found := false
		for _, arg := range args {
			if arg == expectedArg {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("expected argument %q not found in ffmpeg call: %v", expectedArg, args)
		}
	}
	return nil
}

func ffmpegShouldHaveBeenCalledWithArguments(table *godog.Table) error {
	c := getClipContext()
	if len(c.trimmer.calls) == 0 {
		return fmt.Errorf("ffmpeg was not called")
	}
	return containsAllArguments(table, c.trimmer.calls[0].args)
}

func theAudioExtractionShouldHaveUsedArguments(table *godog.Table) error {
	c := getClipContext()
	if len(c.extractor.calls) == 0 {
		return fmt.Errorf("ffmpeg audio extraction was not called")
	}
	return containsAllArguments(table, c.extractor.calls[0].args)
}

func theSubmittedRangeShouldBe(start, end float64) error {
	c := getClipContext()
	if len(c.downstream.submissions) != 1 {
		return fmt.Errorf("expected 1 submission downstream, got %d", len(c.downstream.submissions))
	}
	sub := c.downstream.submissions[0]
	if !approxEqual(sub.Start, start) || !approxEqual(sub.End, end) {
		return fmt.Errorf("expected submission %v to %v, got %v to %v", start, end, sub.Start, sub.End)
	}
	return nil
}

func theClipOutputShouldContain(text string) error {
	c := getClipContext()
	if !strings.Contains(c.output.String(), text) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", text, c.output.String())
	}
	return nil
}

func theClipShouldFailWith(text string) error {
	return expectErrorContaining(getClipContext().err, text)
}
