// Package pathutil canonicalises project paths and derives the stable
// hash used to address a project's sync worktree under ~/.centy/sync/.
package pathutil

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// Canonicalize resolves path to an absolute, symlink-free, trailing-
// separator-free form so that two on-disk-equal paths always compare
// equal regardless of how the caller spelled them (§4.A).
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", centyerr.Wrap(centyerr.IOError, "resolve absolute path", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// The path may not exist yet (e.g. a destination project
			// about to be created); fall back to the cleaned absolute
			// form rather than failing canonicalisation outright.
			resolved = filepath.Clean(abs)
		} else {
			return "", centyerr.Wrap(centyerr.IOError, "resolve symlinks", err)
		}
	}

	return filepath.Clean(resolved), nil
}

// SyncHash returns the first 16 hex digits of SHA-256(canonicalPath),
// the worktree-addressing hash of §4.A. canonicalPath should already
// have passed through Canonicalize.
func SyncHash(canonicalPath string) string {
	sum := sha256.Sum256([]byte(canonicalPath))
	return hex.EncodeToString(sum[:])[:16]
}

// CentyHome returns the root of the per-user Centy state directory
// (~/.centy), failing terminally if the home directory cannot be
// resolved, per §4.A.
func CentyHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", centyerr.Wrap(centyerr.IOError, "resolve user home directory", err)
	}
	return filepath.Join(home, ".centy"), nil
}

// SyncWorktreeDir returns ~/.centy/sync/<h>/ for the given canonical
// project path.
func SyncWorktreeDir(canonicalProjectPath string) (string, error) {
	home, err := CentyHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "sync", SyncHash(canonicalProjectPath)), nil
}

// ProjectDotCenty returns <projectPath>/.centy.
func ProjectDotCenty(projectPath string) string {
	return filepath.Join(projectPath, ".centy")
}

// Same reports whether two (possibly differently spelled) paths refer
// to the same on-disk location.
func Same(a, b string) (bool, error) {
	ca, err := Canonicalize(a)
	if err != nil {
		return false, err
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return false, err
	}
	return ca == cb, nil
}
