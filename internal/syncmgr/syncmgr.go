// Package syncmgr implements the sync coordinator of spec §4.I:
// pull-before-read, commit-and-push-after-write, a per-project
// in-process mutex, and an offline push queue backed by a
// `.sync-pending` sentinel file so a daemon restart doesn't lose
// pending work (spec §9's serialisation design note).
package syncmgr

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/centy-io/centy-daemon/internal/centyerr"
	"github.com/centy-io/centy-daemon/internal/conflict"
	"github.com/centy-io/centy-daemon/internal/frontmatter"
	"github.com/centy-io/centy-daemon/internal/gitutil"
	"github.com/centy-io/centy-daemon/internal/merge3"
	"github.com/centy-io/centy-daemon/internal/pathutil"
)

// defaultTombstoneTTLDays is the grace window (reconcile.tombstone-ttl)
// after which a soft-delete is treated as expired during conflict
// resolution: an edit or restore arriving after the window wins over
// the stale tombstone instead of the delete automatically winning.
const defaultTombstoneTTLDays = 30

// Mode is the project's sync posture (spec §4.I).
type Mode string

const (
	ModeFull      Mode = "full"
	ModeLocalOnly Mode = "local-only"
	ModeDisabled  Mode = "disabled"
)

// Logger is the minimal logging surface the coordinator needs; the
// daemon wires internal/logging's Adapter (a *log.Logger wrapper) in
// here.
type Logger interface {
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...any) {}
func (noopLogger) Infof(string, ...any) {}

var (
	locksMu sync.Mutex
	locks   = map[string]*sync.Mutex{}
)

// lockFor returns the process-wide mutex for a canonical project path,
// creating it on first use. Spec §9: "a map from canonical project
// path to a mutex held for the scope of pull/commit/push."
func lockFor(canonicalPath string) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	m, ok := locks[canonicalPath]
	if !ok {
		m = &sync.Mutex{}
		locks[canonicalPath] = m
	}
	return m
}

// Coordinator serialises sync operations for one project.
type Coordinator struct {
	ProjectPath  string
	WorktreePath string
	Branch       string
	Mode         Mode
	Log          Logger

	// TombstoneTTLDays is reconcile.tombstone-ttl (§ SUPPLEMENTED
	// FEATURES): how long a soft-delete wins over a conflicting
	// concurrent edit/restore before the edit/restore takes over. Zero
	// means the default of 30 days.
	TombstoneTTLDays int

	worktree *gitutil.Manager
	conflict *conflict.Store
}

func (c *Coordinator) tombstoneTTL() time.Duration {
	days := c.TombstoneTTLDays
	if days <= 0 {
		days = defaultTombstoneTTLDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// New constructs a Coordinator whose sync worktree is
// ~/.centy/sync/<h>/.
func New(projectPath string, mode Mode, branch string) (*Coordinator, error) {
	canonical, err := pathutil.Canonicalize(projectPath)
	if err != nil {
		return nil, err
	}
	worktreePath, err := pathutil.SyncWorktreeDir(canonical)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		ProjectPath:  projectPath,
		WorktreePath: worktreePath,
		Branch:       branch,
		Mode:         mode,
		Log:          noopLogger{},
		worktree:     gitutil.NewManager(projectPath, branch),
		conflict:     conflict.New(projectPath),
	}, nil
}

// lock acquires both the in-process mutex (serialising goroutines
// within this daemon) and a cross-process file lock on the worktree's
// lock file (serialising multiple daemon instances against the same
// project, spec §9). The file lock is best-effort: if it cannot be
// acquired (e.g. the worktree directory does not exist yet) only the
// in-process mutex guards the critical section.
func (c *Coordinator) lock() func() {
	canonical, err := pathutil.Canonicalize(c.ProjectPath)
	if err != nil {
		canonical = c.ProjectPath
	}
	m := lockFor(canonical)
	m.Lock()

	fl := flock.New(c.lockFilePath())
	if err := os.MkdirAll(filepath.Dir(c.lockFilePath()), 0o750); err == nil {
		if locked, err := fl.TryLock(); err == nil && locked {
			return func() {
				_ = fl.Unlock()
				m.Unlock()
			}
		}
	}
	return m.Unlock
}

func (c *Coordinator) lockFilePath() string {
	return filepath.Join(filepath.Dir(c.WorktreePath), filepath.Base(c.WorktreePath)+".lock")
}

func (c *Coordinator) sentinelPath() string {
	return filepath.Join(c.WorktreePath, ".centy", ".sync-pending")
}

func (c *Coordinator) git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// PullBeforeRead fetches origin/centy and merges it into the sync
// worktree, best-effort: network failures downgrade to a warning and
// the read proceeds on local state (spec §4.I).
func (c *Coordinator) PullBeforeRead() error {
	if c.Mode != ModeFull {
		return nil
	}
	unlock := c.lock()
	defer unlock()

	_, statErr := os.Stat(c.WorktreePath)
	freshWorktree := os.IsNotExist(statErr)
	if err := c.worktree.EnsureWorktree(c.WorktreePath); err != nil {
		c.Log.Warnf("sync: worktree unavailable, reading local state: %v", err)
		return nil
	}

	if _, err := c.git(c.WorktreePath, "fetch", "origin", c.Branch); err != nil {
		c.Log.Warnf("sync: fetch failed, reading local state: %v", err)
		return nil
	}

	localTip, _ := c.git(c.WorktreePath, "rev-parse", "HEAD")
	remoteTip, _ := c.git(c.WorktreePath, "rev-parse", "origin/"+c.Branch)
	if strings.TrimSpace(localTip) == strings.TrimSpace(remoteTip) {
		if freshWorktree {
			// A worktree just checked out from the remote branch has
			// content the project directory has not received yet.
			return c.copyWorktreeToCenty()
		}
		return nil // tips already match, no-op
	}

	if _, err := c.git(c.WorktreePath, "merge", "--ff-only", "origin/"+c.Branch); err == nil {
		if err := c.copyWorktreeToCenty(); err != nil {
			return err
		}
		return c.flushPendingAndReconcile()
	}

	out, err := c.git(c.WorktreePath, "merge", "--no-edit", "origin/"+c.Branch)
	if err == nil {
		if err := c.copyWorktreeToCenty(); err != nil {
			return err
		}
		return c.flushPendingAndReconcile()
	}

	if !strings.Contains(out, "CONFLICT") && !strings.Contains(out, "Automatic merge failed") {
		c.Log.Warnf("sync: merge failed, reading local state: %v", err)
		_, _ = c.git(c.WorktreePath, "merge", "--abort")
		return nil
	}

	if resolveErr := c.resolveConflicts(); resolveErr != nil {
		c.Log.Warnf("sync: conflict resolution failed: %v", resolveErr)
	}
	// Whether or not every conflict was auto-resolved, the merge is
	// aborted cleanly so the caller continues on local state (spec
	// §4.I): unresolved conflicts were already persisted to the
	// conflict store by resolveConflicts.
	_, _ = c.git(c.WorktreePath, "merge", "--abort")
	return nil
}

// resolveConflicts performs the semantic merge of §4.J over every
// file git reports as conflicting, storing what it cannot resolve.
func (c *Coordinator) resolveConflicts() error {
	out, err := c.git(c.WorktreePath, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return centyerr.Wrap(centyerr.IOError, "list conflicted files", err)
	}

	files := strings.Fields(out)
	for _, rel := range files {
		base, _ := c.git(c.WorktreePath, "show", ":1:"+rel)
		ours, _ := c.git(c.WorktreePath, "show", ":2:"+rel)
		theirs, _ := c.git(c.WorktreePath, "show", ":3:"+rel)

		if strings.HasSuffix(rel, ".md") {
			if resolved, handled := c.resolveTombstoneConflict(ours, theirs); handled {
				if err := os.WriteFile(filepath.Join(c.WorktreePath, rel), []byte(resolved), 0o644); err != nil {
					return centyerr.Wrap(centyerr.IOError, "write tombstone-resolved file", err)
				}
				_, _ = c.git(c.WorktreePath, "add", rel)
				continue
			}

			result := merge3.MergeMarkdown(base, ours, theirs)
			if result.Conflict {
				if _, err := c.conflict.Create(itemTypeFromPath(rel), itemIDFromPath(rel), rel, base, ours, theirs, "markdown merge conflict"); err != nil {
					return err
				}
				continue
			}
			if err := os.WriteFile(filepath.Join(c.WorktreePath, rel), []byte(result.Merged), 0o644); err != nil {
				return centyerr.Wrap(centyerr.IOError, "write merged file", err)
			}
			_, _ = c.git(c.WorktreePath, "add", rel)
			continue
		}

		// JSON sidecars (links, manifest, config).
		var baseM, oursM, theirsM map[string]any
		_ = json.Unmarshal([]byte(base), &baseM)
		_ = json.Unmarshal([]byte(ours), &oursM)
		_ = json.Unmarshal([]byte(theirs), &theirsM)

		result := merge3.MergeJSON(baseM, oursM, theirsM)
		if len(result.Conflicts) > 0 {
			if _, err := c.conflict.Create(itemTypeFromPath(rel), itemIDFromPath(rel), rel, base, ours, theirs, "field merge conflict"); err != nil {
				return err
			}
			continue
		}
		data, _ := json.MarshalIndent(result.Merged, "", "  ")
		if err := os.WriteFile(filepath.Join(c.WorktreePath, rel), data, 0o644); err != nil {
			return centyerr.Wrap(centyerr.IOError, "write merged file", err)
		}
		_, _ = c.git(c.WorktreePath, "add", rel)
	}
	return nil
}

// resolveTombstoneConflict implements "deletion wins unless expired":
// when exactly one side of a conflicted item file carries a
// soft-delete tombstone and the other side edited or restored the same
// item, the tombstone wins unless it is older than the configured TTL,
// in which case the live side wins. Returns handled=false for any
// other shape of conflict (both sides deleted, neither deleted, or
// either side fails to parse), leaving it to the generic markdown merge.
func (c *Coordinator) resolveTombstoneConflict(ours, theirs string) (resolved string, handled bool) {
	oursDoc, err := frontmatter.Parse([]byte(ours))
	if err != nil {
		return "", false
	}
	theirsDoc, err := frontmatter.Parse([]byte(theirs))
	if err != nil {
		return "", false
	}

	oursDeleted := oursDoc.DeletedAt != nil
	theirsDeleted := theirsDoc.DeletedAt != nil
	if oursDeleted == theirsDeleted {
		return "", false
	}

	deletedAt, deletedRaw, liveRaw := oursDoc.DeletedAt, ours, theirs
	if theirsDeleted {
		deletedAt, deletedRaw, liveRaw = theirsDoc.DeletedAt, theirs, ours
	}

	if time.Since(*deletedAt) > c.tombstoneTTL() {
		return liveRaw, true
	}
	return deletedRaw, true
}

func itemTypeFromPath(rel string) string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return ""
}

func itemIDFromPath(rel string) string {
	base := filepath.Base(rel)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(base, ".links")
}

func (c *Coordinator) flushPendingAndReconcile() error {
	if _, err := os.Stat(c.sentinelPath()); err == nil {
		if err := c.push(); err == nil {
			_ = os.Remove(c.sentinelPath())
		}
	}
	return nil
}

// CommitAndPushAfterWrite copies the mutated .centy/ subtree into the
// sync worktree, commits (a no-op if nothing changed), and pushes when
// Mode is full. A push failure creates the offline-queue sentinel.
func (c *Coordinator) CommitAndPushAfterWrite(message string) error {
	if c.Mode == ModeDisabled {
		return nil
	}
	unlock := c.lock()
	defer unlock()

	if err := c.worktree.EnsureWorktree(c.WorktreePath); err != nil {
		return centyerr.Wrap(centyerr.IOError, "ensure sync worktree", err)
	}

	if err := c.copyCentyTree(); err != nil {
		return err
	}

	if _, err := c.git(c.WorktreePath, "add", "-A"); err != nil {
		return centyerr.Wrap(centyerr.IOError, "stage sync worktree changes", err)
	}

	status, _ := c.git(c.WorktreePath, "status", "--porcelain")
	if strings.TrimSpace(status) == "" {
		return nil // empty change set, no-op
	}

	if _, err := c.git(c.WorktreePath, "commit", "-m", message); err != nil {
		return centyerr.Wrap(centyerr.IOError, "commit sync worktree changes", err)
	}

	if c.Mode != ModeFull {
		return nil
	}

	if err := c.push(); err != nil {
		if writeErr := os.WriteFile(c.sentinelPath(), []byte(""), 0o644); writeErr != nil {
			return centyerr.Wrap(centyerr.IOError, "write sync-pending sentinel", writeErr)
		}
		c.Log.Warnf("sync: push failed, queuing retry: %v", err)
		return nil
	}
	return nil
}

func (c *Coordinator) push() error {
	if _, err := c.git(c.WorktreePath, "push", "origin", c.Branch); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

// copyCentyTree copies every file under <project>/.centy into the
// worktree's .centy, overwriting existing content (the real project is
// authoritative; see DESIGN.md on why no merge happens here — conflicts
// only arise from the remote side during PullBeforeRead).
func (c *Coordinator) copyCentyTree() error {
	srcRoot := filepath.Join(c.ProjectPath, ".centy")
	dstRoot := filepath.Join(c.WorktreePath, ".centy")

	return filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstRoot, rel)
		if info.IsDir() {
			return os.MkdirAll(dst, 0o750)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, info.Mode())
	})
}

// copyWorktreeToCenty copies every file under the sync worktree's .centy
// back into <project>/.centy, overwriting existing content. This is the
// read half of the sync round trip (spec §2: "sync pull ... → item
// store"): without it, content pulled and merged into the worktree by
// PullBeforeRead would never reach the files internal/store,
// internal/link, and internal/itemtype actually read.
func (c *Coordinator) copyWorktreeToCenty() error {
	srcRoot := filepath.Join(c.WorktreePath, ".centy")
	dstRoot := filepath.Join(c.ProjectPath, ".centy")

	return filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		// The offline-push sentinel is worktree-local bookkeeping, not
		// part of the project's payload.
		if rel == ".sync-pending" {
			return nil
		}
		dst := filepath.Join(dstRoot, rel)
		if info.IsDir() {
			return os.MkdirAll(dst, 0o750)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, info.Mode())
	})
}

// Repair force-removes and recreates the sync worktree.
func (c *Coordinator) Repair() error {
	unlock := c.lock()
	defer unlock()
	return c.worktree.Repair(c.WorktreePath)
}

// FlushPending retries a queued push if the sentinel is present,
// removing it on success (spec §4.I's offline queue).
func (c *Coordinator) FlushPending() error {
	unlock := c.lock()
	defer unlock()
	if _, err := os.Stat(c.sentinelPath()); err != nil {
		return nil
	}
	if err := c.push(); err != nil {
		return nil
	}
	return os.Remove(c.sentinelPath())
}
