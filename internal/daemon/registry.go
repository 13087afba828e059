// Package daemon implements the one-daemon-per-workspace registry and
// discovery described in spec §4.N: a process-local daemon tracks one
// project's sync root, and a host-wide registry lets other processes
// find (or start) the daemon that owns a given project.
package daemon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/centy-io/centy-daemon/internal/centyerr"
	"github.com/centy-io/centy-daemon/internal/pathutil"
)

// Entry is one daemon's registration in ~/.centy/registry.json, keyed
// by the project's sync hash rather than the teacher's database path.
type Entry struct {
	ProjectPath string    `json:"project_path"`
	SyncHash    string    `json:"sync_hash"`
	SocketPath  string    `json:"socket_path"`
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	Version     string    `json:"version"`
}

// Registry is the host-wide file-backed table of live daemons.
type Registry struct {
	path     string
	lockPath string
}

// NewRegistry opens the registry at ~/.centy/registry.json.
func NewRegistry() (*Registry, error) {
	home, err := pathutil.CentyHome()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(home, 0o750); err != nil {
		return nil, centyerr.Wrap(centyerr.IOError, "create centy home", err)
	}
	return &Registry{
		path:     filepath.Join(home, "registry.json"),
		lockPath: filepath.Join(home, "registry.json.lock"),
	}, nil
}

func (r *Registry) withLock(fn func(entries map[string]Entry) (map[string]Entry, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	fl := flock.New(r.lockPath)
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		// Best effort: proceed without the lock rather than wedge the
		// caller indefinitely on a stuck lock file.
	} else {
		defer fl.Unlock()
	}

	entries, err := r.readAll()
	if err != nil {
		return err
	}
	updated, err := fn(entries)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	return r.writeAll(updated)
}

func (r *Registry) readAll() (map[string]Entry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "read daemon registry", err)
	}
	entries := map[string]Entry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, centyerr.Wrap(centyerr.JSONError, "decode daemon registry", err)
	}
	return entries, nil
}

func (r *Registry) writeAll(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return centyerr.Wrap(centyerr.JSONError, "encode daemon registry", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return centyerr.Wrap(centyerr.IOError, "write daemon registry temp file", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return centyerr.Wrap(centyerr.IOError, "rename daemon registry temp file", err)
	}
	return nil
}

// Register records a running daemon, keyed by its project's sync hash.
func (r *Registry) Register(e Entry) error {
	return r.withLock(func(entries map[string]Entry) (map[string]Entry, error) {
		entries[e.SyncHash] = e
		return entries, nil
	})
}

// Unregister removes a daemon's entry, a no-op if absent.
func (r *Registry) Unregister(syncHash string) error {
	return r.withLock(func(entries map[string]Entry) (map[string]Entry, error) {
		delete(entries, syncHash)
		return entries, nil
	})
}

// List returns every registered daemon, dropping (and persisting the
// drop of) entries whose process is no longer alive.
func (r *Registry) List() ([]Entry, error) {
	var out []Entry
	err := r.withLock(func(entries map[string]Entry) (map[string]Entry, error) {
		changed := false
		for hash, e := range entries {
			if !isProcessAlive(e.PID) {
				delete(entries, hash)
				changed = true
				continue
			}
			out = append(out, e)
		}
		if !changed {
			return nil, nil
		}
		return entries, nil
	})
	return out, err
}

// Get returns the entry for a project's sync hash, if live.
func (r *Registry) Get(syncHash string) (*Entry, bool, error) {
	entries, err := r.List()
	if err != nil {
		return nil, false, err
	}
	for _, e := range entries {
		if e.SyncHash == syncHash {
			ec := e
			return &ec, true, nil
		}
	}
	return nil, false, nil
}

// Clear removes every entry unconditionally, used by `centy daemon stop --all`.
func (r *Registry) Clear() error {
	return r.withLock(func(map[string]Entry) (map[string]Entry, error) {
		return map[string]Entry{}, nil
	})
}
