package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debouncer collapses a burst of Trigger calls into a single firing of
// fn after quiet settles for window, the same shape the teacher's
// daemon file watcher uses around fsnotify bursts.
type debouncer struct {
	window time.Duration
	fn     func()

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(window time.Duration, fn func()) *debouncer {
	return &debouncer{window: window, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fn)
}

func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Watcher hot-reloads a project's config.json, invoking onChange after
// debounced filesystem events (spec's AMBIENT STACK configuration
// section: "the daemon picks up hook and sync-branch edits without
// restart"). Falls back to a no-op if fsnotify cannot be initialized —
// the daemon still works, just without hot reload.
type Watcher struct {
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

// WatchProjectConfig watches <projectPath>/.centy for config.json
// changes and calls onChange (debounced 300ms) when it is written.
func WatchProjectConfig(ctx context.Context, projectPath string, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return &Watcher{}, nil
	}

	dotCenty := filepath.Join(projectPath, ".centy")
	configPath := projectConfigPath(projectPath)
	if err := fw.Add(dotCenty); err != nil {
		_ = fw.Close()
		return &Watcher{}, nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		watcher:   fw,
		debouncer: newDebouncer(300*time.Millisecond, onChange),
		cancel:    cancel,
	}

	go func() {
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if event.Name != configPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					w.debouncer.trigger()
				}
			case _, ok := <-fw.Errors:
				if !ok {
					return
				}
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return w, nil
}

// Close stops watching and releases the fsnotify handle.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	if w.debouncer != nil {
		w.debouncer.cancel()
	}
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
