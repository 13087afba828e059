//go:build unix

package hooks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// runWithProcessGroupTimeout starts cmd in its own process group so
// that, on timeout, the whole group (not just the immediate process)
// is killed — hook scripts may spawn children that would otherwise
// survive the parent's death.
func runWithProcessGroupTimeout(ctx context.Context, cmd *exec.Cmd) error {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
				return fmt.Errorf("kill process group: %w", err)
			}
		}
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}
