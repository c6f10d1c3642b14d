package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxStderr bounds how much ffmpeg diagnostic output is carried in an error
const maxStderr = 2048

// CommandRunner defines the interface for running external commands
// This allows mocking exec.Command in tests
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommandRunner is the production implementation using os/exec.
// Stderr is captured and attached to the returned error
type ExecCommandRunner struct {
	Logger *zap.Logger
}

// Run executes a command and returns any error
func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := r.run(ctx, name, args)
	return err
}

// Output executes a command and returns its stdout
func (r *ExecCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.run(ctx, name, args)
}

func (r *ExecCommandRunner) run(ctx context.Context, name string, args []string) ([]byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	logger.Debug("external command finished",
		zap.String("command", name),
		zap.Strings("args", args),
		zap.Duration("elapsed", time.Since(started)),
		zap.Error(err),
	)
	if err != nil {
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, tail(stderr.String(), maxStderr))
	}
	return stdout.Bytes(), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// seconds renders a position for ffmpeg's -ss/-to/-t with millisecond precision
func seconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
