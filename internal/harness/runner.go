package harness

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// timeoutExitCode mirrors coreutils timeout(1).
const timeoutExitCode = 124

// Output is the captured result of one benchmark process.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Runner executes the benchmark once with the given environment.
// A non-nil error means the process could not be run at all; a process that
// ran and failed is reported through Output.ExitCode.
type Runner interface {
	Run(ctx context.Context, env []string) (Output, error)
}

// ExecRunner runs a fixed argument vector as a subprocess.
type ExecRunner struct {
	Argv    []string
	Dir     string
	Timeout time.Duration // 0 disables the per-trial bound
}

// NewExecRunner creates a runner for argv.
func NewExecRunner(argv []string, timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		Argv:    append([]string(nil), argv...),
		Timeout: timeout,
	}
}

// Run starts the process, waits for it and captures its output. On timeout
// the whole process group is killed, since build tools such as cargo spawn
// the benchmark as a grandchild.
func (r *ExecRunner) Run(ctx context.Context, env []string) (Output, error) {
	if len(r.Argv) == 0 {
		return Output{}, errors.New("benchmark command cannot be empty")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Argv[0], r.Argv[1:]...)
	cmd.Env = env
	cmd.Dir = r.Dir
	setProcessGroup(cmd)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.TimedOut = true
		out.ExitCode = timeoutExitCode
		return out, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("failed to run %s: %w", r.Argv[0], err)
	}

	return out, nil
}
