package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/mod/semver"

	"github.com/centy-io/centy-daemon/internal/asset"
	"github.com/centy-io/centy-daemon/internal/audit"
	"github.com/centy-io/centy-daemon/internal/centyerr"
	"github.com/centy-io/centy-daemon/internal/conflict"
	"github.com/centy-io/centy-daemon/internal/config"
	"github.com/centy-io/centy-daemon/internal/doctor"
	"github.com/centy-io/centy-daemon/internal/hooks"
	"github.com/centy-io/centy-daemon/internal/itemtype"
	"github.com/centy-io/centy-daemon/internal/link"
	"github.com/centy-io/centy-daemon/internal/manifest"
	"github.com/centy-io/centy-daemon/internal/project"
	"github.com/centy-io/centy-daemon/internal/store"
	"github.com/centy-io/centy-daemon/internal/syncmgr"
)

// Server limits used when Server.MaxConns/RequestTimeout are left at
// zero.
const (
	defaultMaxConns        = 32
	defaultRequestTimeout  = 30 * time.Second
	defaultReadBufferBytes = 4 << 20 // 4 MiB, generous enough for an asset upload line
)

// Server is the Unix-socket RPC endpoint a daemon process runs. One
// Server serves exactly one project/workspace, matching §4.N's
// one-daemon-per-workspace rule.
type Server struct {
	SocketPath  string
	Version     string
	Log         *log.Logger
	Store       *store.Store
	Links       *link.Store
	Types       *itemtype.Registry
	Conflicts   *conflict.Store
	Manifest    *manifest.Store
	Users       *project.UserStore
	Sync        *syncmgr.Coordinator
	Config      *config.Config
	Hooks       *hooks.Dispatcher
	Audit       *audit.Log
	ProjectPath string

	// WorkspacesRoot is where issue-scoped throw-away worktrees (spec
	// §4.N) are checked out, conventionally ~/.centy/workspaces/<hash>.
	// Empty disables OpWorkspaceCreate/OpWorkspaceRemove.
	WorkspacesRoot string

	MaxConns       int
	RequestTimeout time.Duration

	listener  net.Listener
	mu        sync.Mutex
	connSem   chan struct{}
	startTime time.Time
	shutdown  chan struct{}
	closeOnce sync.Once
	activeReq int64
}

// Start binds the Unix socket (removing a stale file left by a crashed
// daemon) and begins accepting connections in the background. It
// returns once the listener is ready.
func (s *Server) Start(ctx context.Context) error {
	if s.MaxConns <= 0 {
		s.MaxConns = defaultMaxConns
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = defaultRequestTimeout
	}
	if _, err := os.Stat(s.SocketPath); err == nil {
		_ = os.Remove(s.SocketPath)
	}
	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return centyerr.Wrap(centyerr.IOError, "listen on socket", err)
	}
	if err := os.Chmod(s.SocketPath, 0o600); err != nil {
		_ = ln.Close()
		return centyerr.Wrap(centyerr.IOError, "chmod socket", err)
	}

	s.listener = ln
	s.connSem = make(chan struct{}, s.MaxConns)
	s.shutdown = make(chan struct{})
	s.startTime = time.Now()

	go s.acceptLoop(ctx)
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				if s.Log != nil {
					s.Log.Printf("rpc: accept error: %v", err)
				}
				return
			}
		}
		select {
		case s.connSem <- struct{}{}:
			go func() {
				defer func() { <-s.connSem }()
				s.handleConn(ctx, conn)
			}()
		default:
			// At capacity; reject immediately rather than queue unbounded conns.
			s.writeOverloaded(conn)
			_ = conn.Close()
		}
	}
}

func (s *Server) writeOverloaded(conn net.Conn) {
	resp := Response{Success: false, Messages: []ErrorMessage{{
		Message: "daemon at connection capacity",
		Code:    string(centyerr.IOError),
	}}}
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReaderSize(conn, defaultReadBufferBytes)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			atomic.AddInt64(&s.activeReq, 1)
			resp := s.dispatchLine(ctx, line)
			atomic.AddInt64(&s.activeReq, -1)
			out, _ := json.Marshal(resp)
			out = append(out, '\n')
			writer := bufio.NewWriter(conn)
			if _, werr := writer.Write(out); werr != nil {
				return
			}
			if werr := writer.Flush(); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) dispatchLine(ctx context.Context, line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(centyerr.JSONError, "malformed request: "+err.Error(), "")
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	data, err := s.dispatch(reqCtx, req)
	if err != nil {
		var ce *centyerr.Error
		if errors.As(err, &ce) {
			return errorResponse(ce.Code, ce.Message, ce.Tip)
		}
		return errorResponse(centyerr.IOError, err.Error(), "")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return errorResponse(centyerr.JSONError, "encode response: "+err.Error(), "")
	}
	return Response{Success: true, Data: raw}
}

func errorResponse(code centyerr.Code, message, tip string) Response {
	return Response{Success: false, Messages: []ErrorMessage{{Message: message, Code: string(code), Tip: tip}}}
}

// dispatch is the operation table: one case per Op* constant.
func (s *Server) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Operation {
	case OpPing:
		return PingResponse{Message: "pong", Version: s.Version}, nil
	case OpStatus:
		return s.handleStatus(), nil
	case OpHealth:
		return s.handleHealth(req), nil

	case OpItemCreate:
		return s.handleItemCreate(ctx, req.Args)
	case OpItemGet:
		return s.handleItemGet(req.Args)
	case OpItemList:
		return s.handleItemList(req.Args)
	case OpItemUpdate:
		return s.handleItemUpdate(ctx, req.Args)
	case OpItemSoftDelete:
		return s.handleItemSoftDelete(ctx, req.Args)
	case OpItemRestore:
		return s.handleItemRestore(ctx, req.Args)
	case OpItemDelete:
		return nil, s.handleItemDelete(ctx, req.Args)
	case OpItemMove:
		return s.handleItemMove(req.Args)
	case OpItemDuplicate:
		return s.handleItemDuplicate(req.Args)

	case OpLinkCreate:
		return nil, s.handleLinkCreate(req.Args)
	case OpLinkList:
		return s.handleLinkList(req.Args)
	case OpLinkDelete:
		return nil, s.handleLinkDelete(req.Args)

	case OpAssetAdd:
		return s.handleAssetAdd(req.Args)
	case OpAssetList:
		return s.handleAssetList(req.Args)
	case OpAssetRemove:
		return nil, s.handleAssetRemove(req.Args)

	case OpConflictList:
		return s.Conflicts.List()
	case OpConflictGet:
		return s.handleConflictGet(req.Args)
	case OpConflictResolve:
		return nil, s.handleConflictResolve(req.Args)

	case OpHookDefinitionsGet:
		return nil, nil // daemon wires hook definitions at startup; nothing mutable to fetch over RPC yet
	case OpHookHistory:
		return s.handleHookHistory(req.Args)

	case OpConfigGet:
		return s.handleConfigGet(req.Args)
	case OpConfigSet:
		return nil, s.handleConfigSet(req.Args)

	case OpSyncRepair:
		return nil, s.Sync.Repair()
	case OpDoctor:
		return doctor.Doctor(s.ProjectPath)

	case OpUserList:
		return s.handleUserList()
	case OpUserAdd:
		return s.handleUserAdd(req.Args)
	case OpUserRemove:
		return nil, s.handleUserRemove(req.Args)

	case OpWorkspaceCreate:
		return s.handleWorkspaceCreate(req.Args)
	case OpWorkspaceRemove:
		return nil, s.handleWorkspaceRemove(req.Args)

	case OpShutdown:
		go s.Close()
		return nil, nil

	default:
		return nil, centyerr.Newf(centyerr.NotFound, "unknown operation %q", req.Operation)
	}
}

func (s *Server) handleStatus() StatusResponse {
	mode := ""
	if s.Sync != nil {
		mode = string(s.Sync.Mode)
	}
	return StatusResponse{
		Version:       s.Version,
		WorkspacePath: s.ProjectPath,
		SocketPath:    s.SocketPath,
		PID:           os.Getpid(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		SyncMode:      mode,
	}
}

func (s *Server) handleHealth(req Request) HealthResponse {
	compatible := isCompatibleVersion(s.Version, req.ClientVersion)
	return HealthResponse{
		Status:        "ok",
		Version:       s.Version,
		ClientVersion: req.ClientVersion,
		Compatible:    compatible,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
}

// isCompatibleVersion gates the client/server version mismatch warning:
// same major version is compatible, anything else is not. A client
// that reports no version (older builds, internal callers) is assumed
// compatible rather than warned about a version it never sent.
func isCompatibleVersion(serverVersion, clientVersion string) bool {
	if clientVersion == "" {
		return true
	}
	sv, cv := normalizeSemver(serverVersion), normalizeSemver(clientVersion)
	if !semver.IsValid(sv) || !semver.IsValid(cv) {
		return true
	}
	return semver.Major(sv) == semver.Major(cv)
}

func normalizeSemver(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, centyerr.New(centyerr.JSONError, "missing args")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, centyerr.Wrap(centyerr.JSONError, "decode args", err)
	}
	return v, nil
}

// resolvePriority tolerates the "high"/"medium"/"low" string form at
// the wire boundary (§9's open question), converting to the numeric
// form every downstream package (store, itemtype) actually works with.
func resolvePriority(typ *itemtype.Type, raw any) (*int, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		n := int(v)
		return &n, nil
	case int:
		return &v, nil
	case string:
		if n, ok := typ.ParsePriorityLabel(v); ok {
			return &n, nil
		}
		return nil, centyerr.Newf(centyerr.InvalidPriority, "unrecognized priority label %q", v)
	default:
		return nil, centyerr.Newf(centyerr.InvalidPriority, "unsupported priority value type %T", raw)
	}
}

func (s *Server) resolvePlural(itemType string) (string, *itemtype.Type, error) {
	typ, err := s.Types.Get(itemType)
	if err != nil {
		return "", nil, err
	}
	return typ.Plural, typ, nil
}

func (s *Server) handleItemCreate(ctx context.Context, raw json.RawMessage) (*store.Item, error) {
	args, err := decodeArgs[ItemCreateArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, typ, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	priority, err := resolvePriority(typ, args.Priority)
	if err != nil {
		return nil, err
	}
	if err := s.Hooks.DispatchPre(ctx, args.ItemType, "create", s.ProjectPath, ""); err != nil {
		return nil, err
	}
	it, err := s.Store.Create(plural, args.Title, args.Body, store.CreateOptions{
		Status:       args.Status,
		Priority:     priority,
		CustomFields: args.CustomFields,
	})
	if err != nil {
		return nil, err
	}
	s.Hooks.DispatchPost(ctx, args.ItemType, "create", s.ProjectPath, it.ID)
	s.touchManifest(filepath.Join(plural, it.ID+".md"))
	s.afterWrite(fmt.Sprintf("create %s %s", args.ItemType, it.ID))
	return it, nil
}

func (s *Server) handleItemGet(raw json.RawMessage) (*store.Item, error) {
	args, err := decodeArgs[ItemGetArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	s.beforeRead()
	if args.DisplayNumber != nil {
		return s.Store.GetByDisplayNumber(plural, *args.DisplayNumber)
	}
	return s.Store.Get(plural, args.ID)
}

func (s *Server) handleItemList(raw json.RawMessage) (any, error) {
	args, err := decodeArgs[ItemListArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	s.beforeRead()
	items, renumbered, err := s.Store.List(plural, store.ListFilter{
		Status:         args.Status,
		IncludeDeleted: args.IncludeDeleted,
		Offset:         args.Offset,
		Limit:          args.Limit,
	})
	if err != nil {
		return nil, err
	}
	return struct {
		Items      []*store.Item          `json:"items"`
		Renumbered []store.RenumberedItem `json:"renumbered,omitempty"`
	}{Items: items, Renumbered: renumbered}, nil
}

func (s *Server) handleItemUpdate(ctx context.Context, raw json.RawMessage) (*store.Item, error) {
	args, err := decodeArgs[ItemUpdateArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, typ, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	priority, err := resolvePriority(typ, args.Priority)
	if err != nil {
		return nil, err
	}
	if err := s.Hooks.DispatchPre(ctx, args.ItemType, "update", s.ProjectPath, args.ID); err != nil {
		return nil, err
	}
	patch := store.Patch{
		Title:    args.Title,
		Body:     args.Body,
		Status:   args.Status,
		Priority: priority,
		Draft:    args.Draft,
	}
	if args.CustomFields != nil {
		patch.CustomFields = *args.CustomFields
	}
	it, err := s.Store.Update(plural, args.ID, patch)
	if err != nil {
		return nil, err
	}
	s.Hooks.DispatchPost(ctx, args.ItemType, "update", s.ProjectPath, args.ID)
	s.touchManifest(filepath.Join(plural, args.ID+".md"))
	s.afterWrite(fmt.Sprintf("update %s %s", args.ItemType, args.ID))
	return it, nil
}

func (s *Server) handleItemSoftDelete(ctx context.Context, raw json.RawMessage) (*store.Item, error) {
	args, err := decodeArgs[ItemIDArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	if err := s.Hooks.DispatchPre(ctx, args.ItemType, "delete", s.ProjectPath, args.ID); err != nil {
		return nil, err
	}
	it, err := s.Store.SoftDelete(plural, args.ID)
	if err != nil {
		return nil, err
	}
	s.Hooks.DispatchPost(ctx, args.ItemType, "delete", s.ProjectPath, args.ID)
	s.touchManifest(filepath.Join(plural, args.ID+".md"))
	s.afterWrite(fmt.Sprintf("delete %s %s", args.ItemType, args.ID))
	return it, nil
}

func (s *Server) handleItemRestore(ctx context.Context, raw json.RawMessage) (*store.Item, error) {
	args, err := decodeArgs[ItemIDArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	it, err := s.Store.Restore(plural, args.ID)
	if err != nil {
		return nil, err
	}
	s.touchManifest(filepath.Join(plural, args.ID+".md"))
	s.afterWrite(fmt.Sprintf("restore %s %s", args.ItemType, args.ID))
	return it, nil
}

func (s *Server) handleItemDelete(ctx context.Context, raw json.RawMessage) error {
	args, err := decodeArgs[ItemIDArgs](raw)
	if err != nil {
		return err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(plural, args.ID, args.Hard); err != nil {
		return err
	}
	if args.Hard {
		if err := asset.RemoveItemDir(s.ProjectPath, plural, args.ID); err != nil && s.Log != nil {
			s.Log.Printf("rpc: remove assets for %s %s: %v", args.ItemType, args.ID, err)
		}
		s.forgetManifest(filepath.Join(plural, args.ID+".md"))
	} else {
		s.touchManifest(filepath.Join(plural, args.ID+".md"))
	}
	s.afterWrite(fmt.Sprintf("hard-delete %s %s", args.ItemType, args.ID))
	return nil
}

func (s *Server) handleItemMove(raw json.RawMessage) (*store.Item, error) {
	args, err := decodeArgs[ItemMoveArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	it, err := store.Move(s.ProjectPath, args.TargetProject, plural, args.ID)
	if err != nil {
		return nil, err
	}
	s.forgetManifest(filepath.Join(plural, args.ID+".md"))
	s.afterWrite(fmt.Sprintf("move %s %s", args.ItemType, args.ID))
	return it, nil
}

func (s *Server) handleItemDuplicate(raw json.RawMessage) (*store.Item, error) {
	args, err := decodeArgs[ItemMoveArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	it, err := store.Duplicate(s.ProjectPath, args.TargetProject, plural, args.ID, args.DuplicateTitle)
	if err != nil {
		return nil, err
	}
	s.touchManifest(filepath.Join(plural, it.ID+".md"))
	s.afterWrite(fmt.Sprintf("duplicate %s %s", args.ItemType, args.ID))
	return it, nil
}

func (s *Server) handleLinkCreate(raw json.RawMessage) error {
	args, err := decodeArgs[LinkCreateArgs](raw)
	if err != nil {
		return err
	}
	if err := s.Links.Create(args.SourceType, args.SourceID, args.TargetType, args.TargetID, args.LinkType); err != nil {
		return err
	}
	s.afterWrite(fmt.Sprintf("link %s/%s -> %s/%s", args.SourceType, args.SourceID, args.TargetType, args.TargetID))
	return nil
}

func (s *Server) handleLinkList(raw json.RawMessage) ([]link.Link, error) {
	args, err := decodeArgs[LinkListArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	return s.Links.List(plural, args.ID)
}

func (s *Server) handleLinkDelete(raw json.RawMessage) error {
	args, err := decodeArgs[LinkDeleteArgs](raw)
	if err != nil {
		return err
	}
	if err := s.Links.Delete(args.SourceType, args.SourceID, args.TargetType, args.TargetID, args.LinkType); err != nil {
		return err
	}
	s.afterWrite(fmt.Sprintf("unlink %s/%s -> %s", args.SourceType, args.SourceID, args.TargetID))
	return nil
}

func (s *Server) handleAssetAdd(raw json.RawMessage) (any, error) {
	args, err := decodeArgs[AssetAddArgs](raw)
	if err != nil {
		return nil, err
	}
	var (
		relPath string
		addErr  error
	)
	if args.Shared {
		relPath, addErr = asset.AddShared(s.ProjectPath, args.Filename, args.Data)
	} else {
		plural, _, perr := s.resolvePlural(args.ItemType)
		if perr != nil {
			return nil, perr
		}
		relPath, addErr = asset.AddToItem(s.ProjectPath, plural, args.ID, args.Filename, args.Data, nil)
	}
	if addErr != nil {
		return nil, addErr
	}
	s.afterWrite(fmt.Sprintf("add asset %s", relPath))
	return struct {
		Path string `json:"path"`
	}{Path: relPath}, nil
}

func (s *Server) handleAssetList(raw json.RawMessage) ([]string, error) {
	args, err := decodeArgs[AssetListArgs](raw)
	if err != nil {
		return nil, err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return nil, err
	}
	return asset.ListItem(s.ProjectPath, plural, args.ID)
}

func (s *Server) handleAssetRemove(raw json.RawMessage) error {
	args, err := decodeArgs[AssetRemoveArgs](raw)
	if err != nil {
		return err
	}
	plural, _, err := s.resolvePlural(args.ItemType)
	if err != nil {
		return err
	}
	if err := asset.RemoveItemDir(s.ProjectPath, plural, args.ID); err != nil {
		return err
	}
	s.afterWrite(fmt.Sprintf("remove assets %s/%s", args.ItemType, args.ID))
	return nil
}

func (s *Server) handleConflictGet(raw json.RawMessage) (*conflict.Record, error) {
	args, err := decodeArgs[ConflictIDArgs](raw)
	if err != nil {
		return nil, err
	}
	return s.Conflicts.Get(args.ID)
}

func (s *Server) handleConflictResolve(raw json.RawMessage) error {
	args, err := decodeArgs[ConflictIDArgs](raw)
	if err != nil {
		return err
	}
	if err := s.Conflicts.Resolve(args.ID, conflict.Resolution(args.Resolution), args.MergedContent); err != nil {
		return err
	}
	s.afterWrite(fmt.Sprintf("resolve conflict %s", args.ID))
	return nil
}

func (s *Server) handleHookHistory(raw json.RawMessage) ([]hooks.Execution, error) {
	args, err := decodeArgs[HookHistoryArgs](raw)
	if err != nil {
		return nil, err
	}
	day := time.Now()
	if args.Day != "" {
		parsed, perr := time.Parse(time.RFC3339, args.Day)
		if perr != nil {
			return nil, centyerr.Wrap(centyerr.JSONError, "parse day", perr)
		}
		day = parsed
	}
	return s.Audit.Read(day)
}

func (s *Server) handleConfigGet(raw json.RawMessage) (any, error) {
	args, err := decodeArgs[ConfigGetArgs](raw)
	if err != nil {
		return nil, err
	}
	if args.Key == "" {
		return s.Config.AllSettings(), nil
	}
	return struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}{Key: args.Key, Value: s.Config.GetString(args.Key)}, nil
}

func (s *Server) handleConfigSet(raw json.RawMessage) error {
	args, err := decodeArgs[ConfigSetArgs](raw)
	if err != nil {
		return err
	}
	return s.Config.Set(args.Key, args.Value)
}

func (s *Server) handleUserList() ([]project.User, error) {
	if s.Users == nil {
		return nil, nil
	}
	return s.Users.List()
}

func (s *Server) handleUserAdd(raw json.RawMessage) (*project.User, error) {
	args, err := decodeArgs[UserAddArgs](raw)
	if err != nil {
		return nil, err
	}
	if s.Users == nil {
		return nil, centyerr.New(centyerr.NotInitialized, "project has no user roster").WithDefaultTip()
	}
	u, err := s.Users.Add(args.ID, args.Name, args.Email)
	if err != nil {
		return nil, err
	}
	s.touchManifest("users.json")
	s.afterWrite(fmt.Sprintf("add user %s", args.ID))
	return u, nil
}

func (s *Server) handleUserRemove(raw json.RawMessage) error {
	args, err := decodeArgs[UserRemoveArgs](raw)
	if err != nil {
		return err
	}
	if s.Users == nil {
		return centyerr.New(centyerr.NotInitialized, "project has no user roster").WithDefaultTip()
	}
	if err := s.Users.Remove(args.ID); err != nil {
		return err
	}
	s.touchManifest("users.json")
	s.afterWrite(fmt.Sprintf("remove user %s", args.ID))
	return nil
}

// handleWorkspaceCreate checks out an issue-scoped throw-away worktree
// (spec §4.N), distinct from the permanent .centy-only sync worktree.
func (s *Server) handleWorkspaceCreate(raw json.RawMessage) (*project.Workspace, error) {
	args, err := decodeArgs[WorkspaceCreateArgs](raw)
	if err != nil {
		return nil, err
	}
	if s.WorkspacesRoot == "" {
		return nil, centyerr.New(centyerr.FeatureNotEnabled, "workspaces are not configured for this daemon").WithDefaultTip()
	}
	return project.CreateWorkspace(s.ProjectPath, s.WorkspacesRoot, args.ItemID)
}

func (s *Server) handleWorkspaceRemove(raw json.RawMessage) error {
	args, err := decodeArgs[WorkspaceRemoveArgs](raw)
	if err != nil {
		return err
	}
	if s.WorkspacesRoot == "" {
		return centyerr.New(centyerr.FeatureNotEnabled, "workspaces are not configured for this daemon").WithDefaultTip()
	}
	w := &project.Workspace{
		RepoPath:  s.ProjectPath,
		ItemID:    args.ItemID,
		Path:      filepath.Join(s.WorkspacesRoot, args.ItemID),
		BranchRef: "centy/workspace/" + args.ItemID,
	}
	return project.Discard(w)
}

// afterWrite fires the sync coordinator's commit-and-push after any
// mutating operation; failures are logged, never surfaced to the
// caller, since the write itself already succeeded locally.
func (s *Server) afterWrite(message string) {
	if s.Sync == nil {
		return
	}
	if err := s.Sync.CommitAndPushAfterWrite(message); err != nil && s.Log != nil {
		s.Log.Printf("rpc: sync after write: %v", err)
	}
}

// touchManifest records relPath (relative to .centy/, e.g.
// "issues/<id>.md") as a managed file, bumping manifest.json's
// last-touched timestamp (spec §4.M: "updated by every write").
// Best-effort: a manifest write failure is logged, never surfaced.
func (s *Server) touchManifest(relPath string) {
	if s.Manifest == nil {
		return
	}
	if err := s.Manifest.Touch(relPath); err != nil && s.Log != nil {
		s.Log.Printf("rpc: manifest touch %s: %v", relPath, err)
	}
}

// forgetManifest removes relPath from the managed set after a hard
// delete (spec §4.M).
func (s *Server) forgetManifest(relPath string) {
	if s.Manifest == nil {
		return
	}
	if err := s.Manifest.Forget(relPath); err != nil && s.Log != nil {
		s.Log.Printf("rpc: manifest forget %s: %v", relPath, err)
	}
}

// beforeRead pulls the sync branch best-effort before a read, per §4.I's
// "pull-before-read" rule. Failures are logged, never surfaced.
func (s *Server) beforeRead() {
	if s.Sync == nil {
		return
	}
	if err := s.Sync.PullBeforeRead(); err != nil && s.Log != nil {
		s.Log.Printf("rpc: sync before read: %v", err)
	}
}

// Close stops accepting connections and removes the socket file. Safe
// to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.shutdown != nil {
			close(s.shutdown)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		_ = os.Remove(s.SocketPath)
	})
}
