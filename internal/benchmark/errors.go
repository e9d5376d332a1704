package benchmark

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAborted is wrapped when a sweep stops before its last RunSpec.
var ErrAborted = errors.New("sweep aborted")

// ExecutionError reports a process that could not be started or exited non-zero.
type ExecutionError struct {
	Command  string
	ExitCode int // -1 when the process never started
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	if e.ExitCode < 0 {
		fmt.Fprintf(&b, "failed to start %s", e.Command)
	} else {
		fmt.Fprintf(&b, "%s exited with status %d", e.Command, e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, " (stderr: %s)", lastLine(s))
	}
	return b.String()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError reports a process killed after exceeding its wall-clock bound.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded timeout of %s", e.Command, e.Timeout)
}

// ParseError reports output whose final non-empty line is not a valid measurement.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return "no measurement in output: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid measurement %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NoDataError reports aggregation over zero successful trials.
type NoDataError struct {
	Key ResultKey
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no successful trials for %s", e.Key)
}

// MissingColumnError reports a table column without any data.
type MissingColumnError struct {
	Column Column
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q has no data", e.Column.Header)
}

// ConfigurationError reports an invalid matrix or target. It is fatal.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsRunFailure reports whether err is a per-RunSpec failure that leaves a gap
// instead of aborting the sweep.
func IsRunFailure(err error) bool {
	var execErr *ExecutionError
	var timeoutErr *TimeoutError
	var parseErr *ParseError
	return errors.As(err, &execErr) || errors.As(err, &timeoutErr) || errors.As(err, &parseErr)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
