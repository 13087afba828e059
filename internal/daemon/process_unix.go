//go:build unix

package daemon

import (
	"os"
	"syscall"
)

// isProcessAlive reports whether pid refers to a live process, using
// the signal-0 probe: FindProcess always succeeds on Unix, so the
// liveness check happens on Signal.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
