package docker

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"benchmatrix/internal/benchmark"
)

// ContainerRunner runs benchmark executables inside one long-lived container.
// It implements benchmark.Runner with the same error semantics as ExecRunner.
type ContainerRunner struct {
	Timeout        time.Duration
	IgnoreExitCode bool

	client      *Client
	containerID string
	workspace   string
	mountPoint  string
}

// NewContainerRunner pulls imageRef when possible and starts the container
// that every run is executed in.
func NewContainerRunner(ctx context.Context, c *Client, imageRef, workspace, mountPoint string) (*ContainerRunner, error) {
	if err := c.CheckDaemon(ctx); err != nil {
		return nil, err
	}
	if err := c.PullImage(ctx, imageRef); err != nil {
		slog.Warn("Image pull failed, trying local image", "image", imageRef, "error", err)
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	id, err := c.RunContainer(ctx, imageRef, abs, mountPoint)
	if err != nil {
		return nil, err
	}
	slog.Info("Benchmark container started", "image", imageRef, "container", shortID(id), "workspace", abs)
	return &ContainerRunner{client: c, containerID: id, workspace: abs, mountPoint: mountPoint}, nil
}

// ContainerID is the ID of the container runs execute in.
func (r *ContainerRunner) ContainerID() string {
	return r.containerID
}

// Run executes command with args in the container and parses its measurement.
func (r *ContainerRunner) Run(ctx context.Context, command string, args []string) (benchmark.Measurement, error) {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := append([]string{r.containerPath(command)}, args...)
	res, err := r.client.Exec(runCtx, r.containerID, r.mountPoint, cmd)
	if err != nil {
		if ctx.Err() == nil && runCtx.Err() != nil {
			return 0, &benchmark.TimeoutError{Command: command, Timeout: r.Timeout}
		}
		return 0, &benchmark.ExecutionError{Command: command, ExitCode: -1, Err: err}
	}

	if res.ExitCode != 0 && !r.IgnoreExitCode {
		return 0, &benchmark.ExecutionError{Command: command, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return benchmark.ParseMeasurement(res.Stdout)
}

// containerPath maps a host path inside the workspace to its location under
// the mount point. Other commands are left for the container's PATH.
func (r *ContainerRunner) containerPath(command string) string {
	if !strings.ContainsRune(command, filepath.Separator) {
		return command
	}
	abs, err := filepath.Abs(command)
	if err != nil {
		return command
	}
	rel, err := filepath.Rel(r.workspace, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return command
	}
	return path.Join(r.mountPoint, filepath.ToSlash(rel))
}

// Close stops and removes the container.
func (r *ContainerRunner) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.client.StopContainer(ctx, r.containerID); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", shortID(r.containerID), err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
