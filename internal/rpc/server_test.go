package rpc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/centy-io/centy-daemon/internal/audit"
	"github.com/centy-io/centy-daemon/internal/conflict"
	"github.com/centy-io/centy-daemon/internal/hooks"
	"github.com/centy-io/centy-daemon/internal/itemtype"
	"github.com/centy-io/centy-daemon/internal/link"
	"github.com/centy-io/centy-daemon/internal/manifest"
	"github.com/centy-io/centy-daemon/internal/project"
	"github.com/centy-io/centy-daemon/internal/store"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".centy"), 0o750))

	socketPath := filepath.Join(t.TempDir(), "centy.sock")

	s := &Server{
		SocketPath:  socketPath,
		Version:     "test",
		Store:       store.New(dir),
		Links:       link.New(dir, nil),
		Types:       itemtype.New(dir),
		Conflicts:   conflict.New(dir),
		Manifest:    manifest.New(dir),
		Users:       project.NewUserStore(dir),
		Audit:       audit.New(dir),
		Hooks:       hooks.New(nil, audit.New(dir)),
		ProjectPath: dir,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, s.Start(ctx))
	t.Cleanup(s.Close)

	// give the accept loop a moment to be ready to Accept.
	time.Sleep(10 * time.Millisecond)
	return s, socketPath
}

func TestPingRoundTrip(t *testing.T) {
	_, socketPath := newTestServer(t)

	c, err := TryConnect(socketPath)
	require.NoError(t, err)
	defer c.Close()

	var out PingResponse
	require.NoError(t, CallInto(context.Background(), c, OpPing, nil, "test-client", &out))
	require.Equal(t, "pong", out.Message)
}

func TestItemCreateGetRoundTrip(t *testing.T) {
	_, socketPath := newTestServer(t)

	c, err := TryConnect(socketPath)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	var created store.Item
	require.NoError(t, CallInto(ctx, c, OpItemCreate, ItemCreateArgs{
		ItemType: "issues",
		Title:    "first bug",
		Body:     "steps to reproduce",
	}, "", &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "first bug", created.Title)

	var fetched store.Item
	require.NoError(t, CallInto(ctx, c, OpItemGet, ItemGetArgs{
		ItemType: "issues",
		ID:       created.ID,
	}, "", &fetched))
	require.Equal(t, created.ID, fetched.ID)
}

func TestItemCreateTouchesManifest(t *testing.T) {
	s, socketPath := newTestServer(t)

	c, err := TryConnect(socketPath)
	require.NoError(t, err)
	defer c.Close()

	var created store.Item
	require.NoError(t, CallInto(context.Background(), c, OpItemCreate, ItemCreateArgs{
		ItemType: "issues",
		Title:    "tracked in manifest",
	}, "", &created))

	m, err := s.Manifest.Load()
	require.NoError(t, err)
	require.Contains(t, m.Files, filepath.Join("issues", created.ID+".md"))
}

func TestUserAddListRemoveRoundTrip(t *testing.T) {
	_, socketPath := newTestServer(t)

	c, err := TryConnect(socketPath)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	var added project.User
	require.NoError(t, CallInto(ctx, c, OpUserAdd, UserAddArgs{
		ID:   "alice",
		Name: "Alice",
	}, "", &added))
	require.Equal(t, "alice", added.ID)

	var list []project.User
	require.NoError(t, CallInto(ctx, c, OpUserList, nil, "", &list))
	require.Len(t, list, 1)
	require.Equal(t, "alice", list[0].ID)

	require.NoError(t, CallInto(ctx, c, OpUserRemove, UserRemoveArgs{ID: "alice"}, "", nil))

	require.NoError(t, CallInto(ctx, c, OpUserList, nil, "", &list))
	require.Len(t, list, 0)
}

func TestItemCreateAcceptsPriorityLabel(t *testing.T) {
	_, socketPath := newTestServer(t)

	c, err := TryConnect(socketPath)
	require.NoError(t, err)
	defer c.Close()

	var created store.Item
	require.NoError(t, CallInto(context.Background(), c, OpItemCreate, ItemCreateArgs{
		ItemType: "issues",
		Title:    "urgent bug",
		Priority: "high",
	}, "", &created))
	require.NotNil(t, created.Priority)
	require.Equal(t, 1, *created.Priority)
}

func TestUnknownOperationReturnsError(t *testing.T) {
	_, socketPath := newTestServer(t)

	c, err := TryConnect(socketPath)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Call(context.Background(), "nonexistent_op", nil, "")
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Messages)
}

func TestMalformedRequestReturnsError(t *testing.T) {
	_, socketPath := newTestServer(t)

	c, err := TryConnect(socketPath)
	require.NoError(t, err)
	defer c.Close()

	// Bypass Call to send an invalid JSON line directly.
	_, err = c.conn.Write([]byte("{not json}\n"))
	require.NoError(t, err)

	line, err := c.reader.ReadBytes('\n')
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.Success)
}
