//go:build windows

package hooks

import (
	"context"
	"os/exec"
)

// runWithProcessGroupTimeout has no process-group kill available on
// Windows; it falls back to a best-effort Process.Kill of the
// immediate child on timeout.
func runWithProcessGroupTimeout(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}
