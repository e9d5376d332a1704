package benchmark

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner invokes one external command and extracts its measurement.
type Runner interface {
	Run(ctx context.Context, command string, args []string) (Measurement, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, command string, args []string) (Measurement, error)

func (f RunnerFunc) Run(ctx context.Context, command string, args []string) (Measurement, error) {
	return f(ctx, command, args)
}

// ExecRunner runs benchmarks as local child processes.
//
// A non-zero exit status is an ExecutionError even when the process printed a
// measurement before failing. Set IgnoreExitCode to accept such measurements;
// a start failure or timeout is still an error.
type ExecRunner struct {
	Timeout        time.Duration // per-run wall-clock bound, 0 for none
	IgnoreExitCode bool
	Dir            string
	Env            []string
}

// execCommand allows mocking in tests.
var execCommand = exec.CommandContext

func NewExecRunner(timeout time.Duration, ignoreExitCode bool) *ExecRunner {
	return &ExecRunner{Timeout: timeout, IgnoreExitCode: ignoreExitCode}
}

func (r *ExecRunner) Run(ctx context.Context, command string, args []string) (Measurement, error) {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := execCommand(runCtx, command, args...)
	cmd.Dir = r.Dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	// Grandchildren holding the pipes open must not block Wait forever.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return 0, &ExecutionError{Command: command, ExitCode: -1, Err: err}
	}
	err := cmd.Wait()

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return 0, &TimeoutError{Command: command, Timeout: r.Timeout}
	}
	if ctx.Err() != nil {
		return 0, &ExecutionError{Command: command, ExitCode: cmd.ProcessState.ExitCode(), Err: ctx.Err()}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, &ExecutionError{Command: command, ExitCode: -1, Stderr: stderr.String(), Err: err}
		}
		if !r.IgnoreExitCode {
			return 0, &ExecutionError{Command: command, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
	}

	return ParseMeasurement(stdout.String())
}

// ParseMeasurement extracts the measurement from the final non-empty line of output.
// Earlier lines are the executable's own diagnostics and are ignored.
func ParseMeasurement(output string) (Measurement, error) {
	var last string
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, &ParseError{Err: err}
	}
	if last == "" {
		return 0, &ParseError{Err: errors.New("empty output")}
	}

	v, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, &ParseError{Line: last, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Line: last, Err: errors.New("not a finite number")}
	}
	if v < 0 {
		return 0, &ParseError{Line: last, Err: fmt.Errorf("negative duration %g", v)}
	}
	return Measurement(v), nil
}
