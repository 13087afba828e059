// Package rpc implements the line protocol and dispatch table the
// daemon's transport sits behind (§6's wire surface). The transport
// itself — request correlation, CORS — is out of spec scope (§1); this
// package is newline-delimited JSON over a Unix domain socket, one
// request per line, one response per line.
package rpc

import (
	"encoding/json"
)

// Operation constants, one per §4 capability exposed over the wire.
const (
	OpPing = "ping"

	OpStatus = "status"
	OpHealth = "health"

	OpItemCreate     = "item_create"
	OpItemGet        = "item_get"
	OpItemList       = "item_list"
	OpItemUpdate     = "item_update"
	OpItemSoftDelete = "item_soft_delete"
	OpItemRestore    = "item_restore"
	OpItemDelete     = "item_delete"
	OpItemMove       = "item_move"
	OpItemDuplicate  = "item_duplicate"

	OpLinkCreate = "link_create"
	OpLinkList   = "link_list"
	OpLinkDelete = "link_delete"

	OpAssetAdd    = "asset_add"
	OpAssetList   = "asset_list"
	OpAssetRemove = "asset_remove"

	OpConflictList    = "conflict_list"
	OpConflictGet     = "conflict_get"
	OpConflictResolve = "conflict_resolve"

	OpHookDefinitionsGet = "hook_definitions_get"
	OpHookHistory        = "hook_history"

	OpConfigGet = "config_get"
	OpConfigSet = "config_set"

	OpSyncRepair = "sync_repair"

	OpDoctor = "doctor"

	OpUserList   = "user_list"
	OpUserAdd    = "user_add"
	OpUserRemove = "user_remove"

	OpWorkspaceCreate = "workspace_create"
	OpWorkspaceRemove = "workspace_remove"

	OpShutdown = "shutdown"
)

// Request is the envelope every RPC call sends, one line of JSON.
type Request struct {
	Operation     string          `json:"operation"`
	Args          json.RawMessage `json:"args,omitempty"`
	Cwd           string          `json:"cwd,omitempty"`
	ClientVersion string          `json:"client_version,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
}

// ErrorMessage is one entry in Response.Messages, per §6's
// {message, code, tip?} shape.
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Tip     string `json:"tip,omitempty"`
}

// Response is the envelope every RPC call receives, one line of JSON.
// Error responses additionally carry cwd and logs_path per §6.
type Response struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data,omitempty"`
	Cwd      string          `json:"cwd,omitempty"`
	LogsPath string          `json:"logs_path,omitempty"`
	Messages []ErrorMessage  `json:"messages,omitempty"`
}

// PingResponse answers OpPing.
type PingResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// StatusResponse answers OpStatus (mirrors the teacher's
// StatusResponse, pared to what Centy's daemon actually tracks).
type StatusResponse struct {
	Version       string  `json:"version"`
	WorkspacePath string  `json:"workspace_path"`
	SocketPath    string  `json:"socket_path"`
	PID           int     `json:"pid"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	SyncMode      string  `json:"sync_mode"`
}

// HealthResponse answers OpHealth, including the client/server version
// compatibility check (§ "ClientVersion compatibility gate").
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	ClientVersion string  `json:"client_version,omitempty"`
	Compatible    bool    `json:"compatible"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ItemCreateArgs is the payload for OpItemCreate. Priority accepts
// either a number or one of "high"/"medium"/"low" (spec §9's read-
// boundary tolerance); it is always stored and emitted as a number.
type ItemCreateArgs struct {
	ItemType     string         `json:"item_type"`
	Title        string         `json:"title"`
	Body         string         `json:"body,omitempty"`
	Status       string         `json:"status,omitempty"`
	Priority     any            `json:"priority,omitempty"`
	Draft        bool           `json:"draft,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// ItemGetArgs is the payload for OpItemGet.
type ItemGetArgs struct {
	ItemType      string `json:"item_type"`
	ID            string `json:"id,omitempty"`
	DisplayNumber *int   `json:"display_number,omitempty"`
}

// ItemListArgs is the payload for OpItemList.
type ItemListArgs struct {
	ItemType       string `json:"item_type"`
	Status         string `json:"status,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

// ItemUpdateArgs is the payload for OpItemUpdate.
type ItemUpdateArgs struct {
	ItemType     string          `json:"item_type"`
	ID           string          `json:"id"`
	Title        *string         `json:"title,omitempty"`
	Body         *string         `json:"body,omitempty"`
	Status       *string         `json:"status,omitempty"`
	Priority     any             `json:"priority,omitempty"`
	Draft        *bool           `json:"draft,omitempty"`
	CustomFields *map[string]any `json:"custom_fields,omitempty"`
}

// ItemIDArgs covers soft-delete/restore/hard-delete by (item_type, id).
type ItemIDArgs struct {
	ItemType string `json:"item_type"`
	ID       string `json:"id"`
	Hard     bool   `json:"hard,omitempty"`
}

// ItemMoveArgs is the payload for OpItemMove/OpItemDuplicate.
type ItemMoveArgs struct {
	ItemType        string `json:"item_type"`
	ID              string `json:"id"`
	TargetProject   string `json:"target_project"`
	DuplicateTitle  string `json:"duplicate_title,omitempty"`
}

// LinkCreateArgs is the payload for OpLinkCreate.
type LinkCreateArgs struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	LinkType   string `json:"link_type"`
}

// LinkListArgs is the payload for OpLinkList.
type LinkListArgs struct {
	ItemType string `json:"item_type"`
	ID       string `json:"id"`
}

// LinkDeleteArgs is the payload for OpLinkDelete.
type LinkDeleteArgs struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	LinkType   string `json:"link_type,omitempty"`
}

// AssetAddArgs is the payload for OpAssetAdd.
type AssetAddArgs struct {
	ItemType string `json:"item_type,omitempty"`
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
	Shared   bool   `json:"shared,omitempty"`
}

// AssetListArgs is the payload for OpAssetList.
type AssetListArgs struct {
	ItemType string `json:"item_type"`
	ID       string `json:"id"`
}

// AssetRemoveArgs is the payload for OpAssetRemove.
type AssetRemoveArgs struct {
	ItemType string `json:"item_type"`
	ID       string `json:"id"`
}

// ConflictIDArgs covers OpConflictGet/OpConflictResolve.
type ConflictIDArgs struct {
	ID            string `json:"id"`
	Resolution    string `json:"resolution,omitempty"`
	MergedContent string `json:"merged_content,omitempty"`
}

// HookHistoryArgs is the payload for OpHookHistory.
type HookHistoryArgs struct {
	Day string `json:"day,omitempty"` // RFC3339 timestamp within the wanted UTC day; empty = today
}

// ConfigGetArgs is the payload for OpConfigGet.
type ConfigGetArgs struct {
	Key string `json:"key"`
}

// ConfigSetArgs is the payload for OpConfigSet.
type ConfigSetArgs struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// UserAddArgs is the payload for OpUserAdd.
type UserAddArgs struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// UserRemoveArgs is the payload for OpUserRemove.
type UserRemoveArgs struct {
	ID string `json:"id"`
}

// WorkspaceCreateArgs is the payload for OpWorkspaceCreate: an
// issue-scoped throw-away worktree (spec §4.N), keyed off an item id.
type WorkspaceCreateArgs struct {
	ItemID string `json:"item_id"`
}

// WorkspaceRemoveArgs is the payload for OpWorkspaceRemove.
type WorkspaceRemoveArgs struct {
	ItemID string `json:"item_id"`
}
