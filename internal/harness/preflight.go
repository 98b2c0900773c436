package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// ErrToolchainMissing is returned when the benchmark toolchain cannot be run.
var ErrToolchainMissing = errors.New("benchmark toolchain not found")

// Preflight checks that argv can be started, e.g. "cargo --version". Only a
// missing or unstartable binary is fatal; the check's own exit status is
// ignored.
func Preflight(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return nil
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrToolchainMissing, argv[0], err)
	}

	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ErrToolchainMissing, argv[0], err)
	}
	return nil
}
