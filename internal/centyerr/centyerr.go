// Package centyerr defines the closed set of error codes Centy surfaces
// at process boundaries (RPC responses, CLI exit messages) and the
// structured error type that carries them.
package centyerr

import "fmt"

// Code is one of the closed set of machine-readable error codes named
// in spec §6/§7. UI code switches on Code, never on Message text.
type Code string

const (
	NotInitialized       Code = "NOT_INITIALIZED"
	NotFound             Code = "NOT_FOUND"
	AlreadyExists        Code = "ALREADY_EXISTS"
	InvalidStatus        Code = "INVALID_STATUS"
	InvalidPriority      Code = "INVALID_PRIORITY"
	FeatureNotEnabled    Code = "FEATURE_NOT_ENABLED"
	IsDeleted            Code = "IS_DELETED"
	SameProject          Code = "SAME_PROJECT"
	TargetNotInitialized Code = "TARGET_NOT_INITIALIZED"
	HookPreFailed        Code = "HOOK_PRE_FAILED"
	HookTimeout          Code = "HOOK_TIMEOUT"
	LinkSelf             Code = "LINK_SELF"
	LinkNotFound         Code = "LINK_NOT_FOUND"
	LinkAlreadyExists    Code = "LINK_ALREADY_EXISTS"
	InvalidLinkType      Code = "INVALID_LINK_TYPE"
	IOError              Code = "IO_ERROR"
	JSONError            Code = "JSON_ERROR"
	YAMLError            Code = "YAML_ERROR"
	FrontmatterError     Code = "FRONTMATTER_ERROR"
	ItemTypeNotFound     Code = "ITEM_TYPE_NOT_FOUND"

	// TitleRequired and AssetAlreadyExists and UnsupportedFileType are
	// named explicitly in §4.D/§4.G's boundary behaviours but omitted
	// from §6's summary table; kept alongside the closed set since the
	// wire contract says "a request/response pair for every capability
	// named in §4" and these are §4 failure modes.
	TitleRequired       Code = "TITLE_REQUIRED"
	AssetAlreadyExists  Code = "ASSET_ALREADY_EXISTS"
	UnsupportedFileType Code = "UNSUPPORTED_FILE_TYPE"
)

// Error is the structured error surface of §4.O. It satisfies the
// standard error interface so errors.As/errors.Is work normally, and
// carries enough material for a UI to switch on Code and show Tip.
type Error struct {
	Code    Code
	Message string
	Tip     string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no remediation tip.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that carries an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithTip attaches a remediation tip and returns the same *Error for chaining.
func (e *Error) WithTip(tip string) *Error {
	e.Tip = tip
	return e
}

// defaultTips mirrors the worked example in §7 ("NOT_INITIALIZED ->
// Run `centy init`...") for the handful of codes common enough to
// deserve a canned remediation.
var defaultTips = map[Code]string{
	NotInitialized: "Run `centy init` to initialize the project",
	IsDeleted:      "Restore the item before modifying it",
	SameProject:    "Choose a different destination project",
}

// WithDefaultTip attaches the canned tip for Code if one is known and
// none has been set yet.
func (e *Error) WithDefaultTip() *Error {
	if e.Tip == "" {
		if tip, ok := defaultTips[e.Code]; ok {
			e.Tip = tip
		}
	}
	return e
}
