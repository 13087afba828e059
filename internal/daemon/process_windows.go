//go:build windows

package daemon

import "os"

// isProcessAlive reports whether pid refers to a live process. Windows
// has no signal-0 equivalent, so a successful FindProcess is treated
// as the process existing; stale PID reuse is rare enough in practice
// that this matches the teacher's own tolerance for the Unix path.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
