// Package hooks implements the lifecycle hook dispatcher of spec §4.L:
// pattern-matched pre/post hook execution with specificity ordering,
// blocking-pre / best-effort-post semantics, timeouts, and an
// append-only execution audit log.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/centy-io/centy-daemon/internal/centyerr"
)

// Phase is "pre" or "post".
type Phase string

const (
	Pre  Phase = "pre"
	Post Phase = "post"
)

// Definition is one configured hook entry (spec §4.L).
type Definition struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Command string `yaml:"command" json:"command"`
	IsAsync bool   `yaml:"is_async" json:"is_async"`
	Timeout int    `yaml:"timeout" json:"timeout"` // seconds
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// Validate enforces the configuration-load rules of §4.L: pre-hooks
// may not be async, timeout must be in [1,300], command non-empty.
func (d Definition) Validate() error {
	phase, _, _, err := splitPattern(d.Pattern)
	if err != nil {
		return err
	}
	if phase == string(Pre) && d.IsAsync {
		return centyerr.New(centyerr.IOError, "pre-hooks may not be asynchronous")
	}
	if d.Timeout < 1 || d.Timeout > 300 {
		return centyerr.New(centyerr.IOError, "hook timeout must be in [1,300] seconds")
	}
	if strings.TrimSpace(d.Command) == "" {
		return centyerr.New(centyerr.IOError, "hook command must not be empty")
	}
	return nil
}

func splitPattern(pattern string) (phase, itemType, operation string, err error) {
	parts := strings.Split(pattern, ":")
	if len(parts) != 3 {
		return "", "", "", centyerr.Newf(centyerr.IOError, "hook pattern %q must have 3 segments", pattern)
	}
	return parts[0], parts[1], parts[2], nil
}

func segmentMatches(segment, value string) bool {
	return segment == "*" || segment == value
}

// matches reports whether pattern matches the (phase, itemType,
// operation) triple.
func matches(pattern string, phase Phase, itemType, operation string) bool {
	p, t, o, err := splitPattern(pattern)
	if err != nil {
		return false
	}
	return segmentMatches(p, string(phase)) && segmentMatches(t, itemType) && segmentMatches(o, operation)
}

// specificity is the count of non-'*' segments (0-3).
func specificity(pattern string) int {
	p, t, o, err := splitPattern(pattern)
	if err != nil {
		return -1
	}
	n := 0
	for _, seg := range []string{p, t, o} {
		if seg != "*" {
			n++
		}
	}
	return n
}

// Context is the dispatch context passed to hooks on stdin (JSON) and
// mirrored into the environment.
type Context struct {
	Phase       string `json:"phase"`
	ItemType    string `json:"item_type"`
	Operation   string `json:"operation"`
	ProjectPath string `json:"project_path"`
	ItemID      string `json:"item_id,omitempty"`
}

func (c Context) env() []string {
	env := []string{
		"CENTY_PHASE=" + c.Phase,
		"CENTY_ITEM_TYPE=" + c.ItemType,
		"CENTY_OPERATION=" + c.Operation,
		"CENTY_PROJECT_PATH=" + c.ProjectPath,
	}
	if c.ItemID != "" {
		env = append(env, "CENTY_ITEM_ID="+c.ItemID)
	}
	return env
}

// Execution is the bounded-size audit record of one hook run (spec §3's
// Hook execution record).
type Execution struct {
	ID               string `json:"id"`
	Timestamp        string `json:"timestamp"`
	Pattern          string `json:"pattern"`
	Command          string `json:"command"`
	Phase            string `json:"phase"`
	ItemType         string `json:"item_type"`
	Operation        string `json:"operation"`
	ItemID           string `json:"item_id,omitempty"`
	ExitCode         *int   `json:"exit_code"`
	Stdout           string `json:"stdout"`
	Stderr           string `json:"stderr"`
	DurationMillis   int64  `json:"duration_ms"`
	BlockedOperation bool   `json:"blocked_operation"`
	TimedOut         bool   `json:"timed_out"`
}

const maxCapturedBytes = 64 * 1024 // §9: bound captured stdout/stderr to 64 KiB

func bound(b []byte) string {
	if len(b) > maxCapturedBytes {
		return string(b[:maxCapturedBytes])
	}
	return string(b)
}

// AuditLogger persists Executions; implemented by internal/audit.
type AuditLogger interface {
	AppendHookExecution(Execution) error
}

// AsyncExecutor runs a func in the background, used for async post
// hooks (spec §5: "an unbounded spawned-task pool").
type AsyncExecutor interface {
	Go(func())
}

type goExecutor struct{}

func (goExecutor) Go(fn func()) { go fn() }

// Dispatcher runs hooks matching a (phase, item_type, operation)
// triple, in specificity order. defsMu guards Definitions, which
// SetDefinitions swaps wholesale when config hot-reload picks up an
// edit to hooks.definitions.
type Dispatcher struct {
	Definitions []Definition
	Audit       AuditLogger
	Async       AsyncExecutor
	Warnf       func(format string, args ...any)
	Debugf      func(format string, args ...any)

	defsMu sync.RWMutex
}

// New returns a dispatcher. audit may be nil to skip auditing (tests).
func New(defs []Definition, audit AuditLogger) *Dispatcher {
	return &Dispatcher{
		Definitions: defs,
		Audit:       audit,
		Async:       goExecutor{},
		Warnf:       func(string, ...any) {},
		Debugf:      func(string, ...any) {},
	}
}

// SetDefinitions replaces the dispatcher's hook table, used by the
// daemon's config watcher to apply edits without a restart.
func (d *Dispatcher) SetDefinitions(defs []Definition) {
	d.defsMu.Lock()
	defer d.defsMu.Unlock()
	d.Definitions = defs
}

func (d *Dispatcher) matching(phase Phase, itemType, operation string) []Definition {
	d.defsMu.RLock()
	defs := d.Definitions
	d.defsMu.RUnlock()

	var out []Definition
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		if matches(def.Pattern, phase, itemType, operation) {
			out = append(out, def)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return specificity(out[i].Pattern) > specificity(out[j].Pattern)
	})
	return out
}

// DispatchPre runs every enabled pre-hook matching the triple,
// synchronously, in specificity order. The first non-zero exit or
// timeout aborts and returns an error carrying the failing hook's
// pattern, exit code, and stderr.
func (d *Dispatcher) DispatchPre(ctx context.Context, itemType, operation, projectPath, itemID string) error {
	for _, def := range d.matching(Pre, itemType, operation) {
		hookCtx := Context{Phase: string(Pre), ItemType: itemType, Operation: operation, ProjectPath: projectPath, ItemID: itemID}
		exec, runErr := d.run(ctx, def, hookCtx)
		d.record(exec)

		if runErr != nil && exec.TimedOut {
			return centyerr.Newf(centyerr.HookTimeout, "hook %q timed out", def.Pattern)
		}
		if exec.ExitCode == nil || *exec.ExitCode != 0 {
			return centyerr.Newf(centyerr.HookPreFailed, "hook %q exited %v: %s", def.Pattern, exitCodeString(exec.ExitCode), exec.Stderr)
		}
	}
	return nil
}

func exitCodeString(code *int) string {
	if code == nil {
		return "unknown"
	}
	return strconv.Itoa(*code)
}

// DispatchPost runs every enabled post-hook matching the triple.
// Synchronous hooks run inline with warning-level failure logs;
// asynchronous hooks run on the background executor with debug-level
// failure logs. Post failures never propagate to the caller.
func (d *Dispatcher) DispatchPost(ctx context.Context, itemType, operation, projectPath, itemID string) {
	for _, def := range d.matching(Post, itemType, operation) {
		def := def
		hookCtx := Context{Phase: string(Post), ItemType: itemType, Operation: operation, ProjectPath: projectPath, ItemID: itemID}

		run := func() {
			exec, runErr := d.run(ctx, def, hookCtx)
			d.record(exec)
			if runErr != nil || exec.ExitCode == nil || *exec.ExitCode != 0 {
				if def.IsAsync {
					d.Debugf("post hook %q failed: %v", def.Pattern, runErr)
				} else {
					d.Warnf("post hook %q failed: %v", def.Pattern, runErr)
				}
			}
		}

		if def.IsAsync {
			d.Async.Go(run)
		} else {
			run()
		}
	}
}

func (d *Dispatcher) record(exec Execution) {
	if d.Audit == nil {
		return
	}
	_ = d.Audit.AppendHookExecution(exec)
}

// run executes one hook, enforcing its configured timeout.
func (d *Dispatcher) run(parent context.Context, def Definition, hookCtx Context) (Execution, error) {
	timeout := time.Duration(def.Timeout) * time.Second
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	payload, _ := json.Marshal(hookCtx)

	start := time.Now()
	exec := Execution{
		ID:        newExecutionID(),
		Timestamp: start.UTC().Format(time.RFC3339Nano),
		Pattern:   def.Pattern,
		Command:   def.Command,
		Phase:     hookCtx.Phase,
		ItemType:  hookCtx.ItemType,
		Operation: hookCtx.Operation,
		ItemID:    hookCtx.ItemID,
	}

	cmd := exec_Command(ctx, def.Command)
	cmd.Stdin = bytes.NewReader(payload)
	// os.Environ() must come first: exec.Cmd treats a non-nil Env as the
	// *entire* subprocess environment, not an addition to the inherited
	// one, so mirroring only CENTY_* vars here would drop PATH/HOME and
	// break any hook command that isn't a hermetic absolute-path binary.
	cmd.Env = append(os.Environ(), hookCtx.env()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := runWithProcessGroupTimeout(ctx, cmd)
	exec.DurationMillis = time.Since(start).Milliseconds()
	exec.Stdout = bound(stdout.Bytes())
	exec.Stderr = bound(stderr.Bytes())

	if ctx.Err() == context.DeadlineExceeded {
		exec.TimedOut = true
		exec.BlockedOperation = hookCtx.Phase == string(Pre)
		return exec, fmt.Errorf("hook timed out: %w", ctx.Err())
	}

	code := exitCode(cmd, err)
	exec.ExitCode = &code
	exec.BlockedOperation = hookCtx.Phase == string(Pre) && code != 0
	return exec, err
}

func exitCode(cmd *exec.Cmd, runErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if runErr != nil {
		return -1
	}
	return 0
}

func exec_Command(ctx context.Context, command string) *exec.Cmd {
	// Hook commands are configured by the project owner in project
	// config, not by request input, so shelling out through sh -c is
	// an accepted trust boundary here (the same one the teacher's
	// config-driven hook commands use).
	return exec.CommandContext(ctx, "sh", "-c", command)
}

var executionCounter int64

func newExecutionID() string {
	executionCounter++
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), executionCounter)
}
