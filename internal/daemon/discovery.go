package daemon

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/centy-io/centy-daemon/internal/pathutil"
	"github.com/centy-io/centy-daemon/internal/rpc"
)

// Info is the caller-facing view of a daemon, merging its registry
// entry with a live RPC probe.
type Info struct {
	Entry
	Alive   bool
	Version string
}

// Discover finds the daemon registered for projectPath, probing it
// over RPC to confirm it actually answers before reporting Alive.
func Discover(ctx context.Context, projectPath string) (*Info, error) {
	canonical, err := pathutil.Canonicalize(projectPath)
	if err != nil {
		return nil, err
	}
	hash := pathutil.SyncHash(canonical)

	reg, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	entry, ok, err := reg.Get(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	info := &Info{Entry: *entry}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if ping, err := rpc.Ping(pingCtx, entry.SocketPath); err == nil {
		info.Alive = true
		info.Version = ping.Version
	}
	return info, nil
}

// List returns every live daemon on the host.
func List() ([]Entry, error) {
	reg, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	return reg.List()
}

// CleanupStale drops registry entries for daemons whose process has
// died without unregistering itself (e.g. killed with SIGKILL).
func CleanupStale() error {
	reg, err := NewRegistry()
	if err != nil {
		return err
	}
	_, err = reg.List() // List already prunes dead PIDs as a side effect.
	return err
}

// Stop asks a daemon to shut down gracefully over RPC, escalating to
// SIGTERM and finally SIGKILL if it does not exit within timeout.
// Mirrors the teacher's graceful-then-forceful escalation.
func Stop(ctx context.Context, entry Entry, timeout time.Duration) error {
	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if c, err := rpc.TryConnectWithTimeout(entry.SocketPath, 2*time.Second); err == nil {
		_, _ = c.Call(callCtx, rpc.OpShutdown, nil, "")
		c.Close()
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !isProcessAlive(entry.PID) {
			return unregisterQuiet(entry.SyncHash)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if proc, err := os.FindProcess(entry.PID); err == nil {
		_ = proc.Signal(syscall.SIGTERM)
	}
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !isProcessAlive(entry.PID) {
			return unregisterQuiet(entry.SyncHash)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if proc, err := os.FindProcess(entry.PID); err == nil {
		_ = proc.Kill()
	}
	return unregisterQuiet(entry.SyncHash)
}

func unregisterQuiet(syncHash string) error {
	reg, err := NewRegistry()
	if err != nil {
		return err
	}
	return reg.Unregister(syncHash)
}

// StopAll stops every daemon registered on the host, best-effort.
func StopAll(ctx context.Context, timeout time.Duration) []error {
	entries, err := List()
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, e := range entries {
		if err := Stop(ctx, e, timeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
