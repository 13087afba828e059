// Package atomicfile implements the temp-write-fsync-rename-fsync
// sequence the spec mandates for every durable write (§4.D's Atomicity
// rule, restated for manifests, links, conflicts, and config).
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// Write durably replaces path's contents: the new data is written to a
// sibling temp file, fsynced, renamed over path, and the parent
// directory is fsynced afterwards so the rename itself is durable.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return centyerr.Wrap(centyerr.IOError, "create parent directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return centyerr.Wrap(centyerr.IOError, "create temp file", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return centyerr.Wrap(centyerr.IOError, "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return centyerr.Wrap(centyerr.IOError, "fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return centyerr.Wrap(centyerr.IOError, "close temp file", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return centyerr.Wrap(centyerr.IOError, "chmod temp file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return centyerr.Wrap(centyerr.IOError, "rename into place", err)
	}

	if err := fsyncDir(dir); err != nil {
		return centyerr.Wrap(centyerr.IOError, "fsync parent directory", err)
	}

	return nil
}

func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Directory fsync is best-effort: some platforms (notably Windows)
	// reject Sync on a directory handle outright.
	_ = d.Sync()
	return nil
}

// Remove deletes path and fsyncs its parent directory, mirroring the
// durability Write offers so deletions are equally crash-safe.
func Remove(path string) error {
	dir := filepath.Dir(path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return centyerr.Wrap(centyerr.IOError, "remove file", err)
	}
	return fsyncDir(dir)
}
