// Package audit implements the append-only hook execution log of spec
// §3/§4.L: one JSONL file per day under .centy/.hooks-history/. The log
// is never read for correctness — it exists so operators can answer
// "why did my create fail" and "which hook is flaky" (spec §9).
package audit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/centy-io/centy-daemon/internal/centyerr"
	"github.com/centy-io/centy-daemon/internal/hooks"
)

// Log appends hook.Execution records to a per-day JSONL file.
type Log struct {
	projectPath string
	mu          sync.Mutex
}

// New returns a hook-execution audit log for projectPath.
func New(projectPath string) *Log {
	return &Log{projectPath: projectPath}
}

func (l *Log) dir() string {
	return filepath.Join(l.projectPath, ".centy", ".hooks-history")
}

func (l *Log) pathForDay(t time.Time) string {
	return filepath.Join(l.dir(), t.UTC().Format("2006-01-02")+".jsonl")
}

// AppendHookExecution satisfies hooks.AuditLogger.
func (l *Log) AppendHookExecution(exec hooks.Execution) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir(), 0o750); err != nil {
		return centyerr.Wrap(centyerr.IOError, "create hooks history directory", err)
	}

	line, err := json.Marshal(exec)
	if err != nil {
		return centyerr.Wrap(centyerr.JSONError, "encode hook execution", err)
	}
	line = append(line, '\n')

	path := l.pathForDay(time.Now())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return centyerr.Wrap(centyerr.IOError, "open hooks history file", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return centyerr.Wrap(centyerr.IOError, "append hook execution", err)
	}
	return f.Sync()
}

// Read returns every recorded execution for the given day, oldest
// first. Used by the doctor/status surfaces, never by normal
// operation.
func (l *Log) Read(day time.Time) ([]hooks.Execution, error) {
	path := l.pathForDay(day)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, centyerr.Wrap(centyerr.IOError, "read hooks history file", err)
	}

	var out []hooks.Execution
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var e hooks.Execution
		if err := dec.Decode(&e); err != nil {
			break
		}
		out = append(out, e)
	}
	return out, nil
}
