// Command centyd is the daemon process of spec §2: one instance per
// workspace, owning the orphan-branch sync worktree, the hook
// runner, and a Unix-socket RPC endpoint a CLI/editor front-end talks
// to. The front-end itself is out of spec scope (§1); this binary only
// starts, serves, and stops that daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/centy-io/centy-daemon/internal/audit"
	"github.com/centy-io/centy-daemon/internal/config"
	"github.com/centy-io/centy-daemon/internal/conflict"
	"github.com/centy-io/centy-daemon/internal/daemon"
	"github.com/centy-io/centy-daemon/internal/hooks"
	"github.com/centy-io/centy-daemon/internal/itemtype"
	"github.com/centy-io/centy-daemon/internal/link"
	"github.com/centy-io/centy-daemon/internal/logging"
	"github.com/centy-io/centy-daemon/internal/manifest"
	"github.com/centy-io/centy-daemon/internal/pathutil"
	"github.com/centy-io/centy-daemon/internal/project"
	"github.com/centy-io/centy-daemon/internal/rpc"
	"github.com/centy-io/centy-daemon/internal/store"
	"github.com/centy-io/centy-daemon/internal/syncmgr"
)

// version is stamped at release time; "dev" is the unreleased default.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		socketPath string
		workspace  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "centyd",
		Short: "Centy daemon: one sync-coordinated workspace server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), workspace, socketPath, logLevel)
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "Unix socket path (default ~/.centy/sockets/<hash>.sock)")
	cmd.Flags().StringVar(&workspace, "workspace", ".", "project workspace root")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func run(ctx context.Context, workspace, socketPath, logLevel string) error {
	projectPath, err := filepath.Abs(workspace)
	if err != nil {
		return fmt.Errorf("resolve workspace path: %w", err)
	}

	centyHome, err := pathutil.CentyHome()
	if err != nil {
		return err
	}
	logDir := filepath.Join(centyHome, "logs")
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logger := logging.New(logging.Options{
		Path: filepath.Join(logDir, "centyd.log"),
	})
	logger.SetPrefix(fmt.Sprintf("[centyd %s] ", logLevel))

	cfg, err := config.Load(projectPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	canonical, err := pathutil.Canonicalize(projectPath)
	if err != nil {
		return err
	}
	syncHash := pathutil.SyncHash(canonical)

	if socketPath == "" {
		if configured := cfg.GetString("daemon.socket_path"); configured != "" {
			socketPath = configured
		} else {
			socketPath = filepath.Join(centyHome, "sockets", syncHash+".sock")
		}
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o750); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	syncMode := syncmgr.Mode(cfg.GetString("sync.mode"))
	coordinator, err := syncmgr.New(projectPath, syncMode, cfg.GetString("sync.branch"))
	if err != nil {
		return fmt.Errorf("init sync coordinator: %w", err)
	}
	coordinator.Log = logging.Adapter{L: logger}
	coordinator.TombstoneTTLDays = cfg.GetInt("reconcile.tombstone-ttl")

	auditLog := audit.New(projectPath)
	hookDefs, err := cfg.HookDefinitions()
	if err != nil {
		return fmt.Errorf("load hook definitions: %w", err)
	}
	dispatcher := hooks.New(hookDefs, auditLog)

	watcher, err := config.WatchProjectConfig(ctx, projectPath, func() {
		if err := cfg.Reload(); err != nil {
			logger.Printf("centyd: reload config: %v", err)
			return
		}
		defs, err := cfg.HookDefinitions()
		if err != nil {
			logger.Printf("centyd: reload hook definitions: %v", err)
			return
		}
		dispatcher.SetDefinitions(defs)
		logger.Printf("centyd: config reloaded")
	})
	if err != nil {
		return fmt.Errorf("watch project config: %w", err)
	}
	defer watcher.Close()

	server := &rpc.Server{
		SocketPath:     socketPath,
		Version:        version,
		Log:            logger,
		Store:          store.New(projectPath),
		Links:          link.New(projectPath, nil),
		Types:          itemtype.New(projectPath),
		Conflicts:      conflict.New(projectPath),
		Manifest:       manifest.New(projectPath),
		Users:          project.NewUserStore(projectPath),
		Sync:           coordinator,
		Config:         cfg,
		Hooks:          dispatcher,
		Audit:          auditLog,
		ProjectPath:    projectPath,
		WorkspacesRoot: filepath.Join(centyHome, "workspaces", syncHash),
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := server.Start(serveCtx); err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}
	logger.Printf("centyd listening on %s for workspace %s", socketPath, projectPath)

	registry, err := daemon.NewRegistry()
	if err != nil {
		return fmt.Errorf("open daemon registry: %w", err)
	}
	entry := daemon.Entry{
		ProjectPath: projectPath,
		SyncHash:    syncHash,
		SocketPath:  socketPath,
		PID:         os.Getpid(),
		StartedAt:   time.Now().UTC(),
		Version:     version,
	}
	if err := registry.Register(entry); err != nil {
		logger.Printf("centyd: register with daemon registry: %v", err)
	}
	defer func() {
		if err := registry.Unregister(syncHash); err != nil {
			logger.Printf("centyd: unregister from daemon registry: %v", err)
		}
	}()

	idleMinutes := cfg.GetInt("daemon.idle_shutdown_minutes")
	waitForShutdown(ctx, logger, idleMinutes)

	server.Close()
	return nil
}

// waitForShutdown blocks until SIGINT/SIGTERM or the idle timer fires.
// The idle timer is a coarse safety net, not last-activity tracking:
// restarting it on every RPC call is future work if idle shutdown
// proves too eager in practice.
func waitForShutdown(ctx context.Context, logger *log.Logger, idleMinutes int) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var idleCh <-chan time.Time
	if idleMinutes > 0 {
		timer := time.NewTimer(time.Duration(idleMinutes) * time.Minute)
		defer timer.Stop()
		idleCh = timer.C
	}

	select {
	case sig := <-sigCh:
		logger.Printf("centyd: received %s, shutting down", sig)
	case <-idleCh:
		logger.Printf("centyd: idle shutdown after %d minutes", idleMinutes)
	case <-ctx.Done():
		logger.Printf("centyd: context cancelled, shutting down")
	}
}
