// Package errors defines the stable error code system for backpack.
package errors

import (
	"errors"
	"fmt"
	"io"
)

// Code is a stable error code string.
type Code string

// Error codes. Codes are part of the CLI contract and must not be renamed.
const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Preconditions: checked before any repository mutation.
	ENoRepo                  Code = "E_NO_REPO"
	EEmptyRepo               Code = "E_EMPTY_REPO"
	EDetachedHead            Code = "E_DETACHED_HEAD"
	EGitNotInstalled         Code = "E_GIT_NOT_INSTALLED"
	ERewriteToolNotInstalled Code = "E_REWRITE_TOOL_NOT_INSTALLED"
	EBaseBranchNotFound      Code = "E_BASE_BRANCH_NOT_FOUND"
	ESourceBranchNotFound    Code = "E_SOURCE_BRANCH_NOT_FOUND"
	EDirtyTree               Code = "E_DIRTY_TREE"
	ERepoLocked              Code = "E_REPO_LOCKED"

	// Resolution
	EBaseBranchUnresolved Code = "E_BASE_BRANCH_UNRESOLVED"
	ENoMetadata           Code = "E_NO_METADATA"
	EMetadataCorrupt      Code = "E_METADATA_CORRUPT"
	EBranchNotFound       Code = "E_BRANCH_NOT_FOUND"
	EBranchAmbiguous      Code = "E_BRANCH_AMBIGUOUS"
	EInvalidConfig        Code = "E_INVALID_CONFIG"

	// Mutation
	EMetadataExists      Code = "E_METADATA_EXISTS"
	EMetadataIgnored     Code = "E_METADATA_IGNORED"
	EOnEmitBranch        Code = "E_ON_EMIT_BRANCH"
	EMetadataWriteFailed Code = "E_METADATA_WRITE_FAILED"
	ECommitFailed        Code = "E_COMMIT_FAILED"
	EBranchOpFailed      Code = "E_BRANCH_OP_FAILED"
	ECheckoutFailed      Code = "E_CHECKOUT_FAILED"
	EMergeBaseFailed     Code = "E_MERGE_BASE_FAILED"
	ERewriteFailed       Code = "E_REWRITE_FAILED"

	EJournalFailed Code = "E_JOURNAL_FAILED"
)

// BackpackError is the standard error type for backpack errors.
type BackpackError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *BackpackError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BackpackError) Unwrap() error {
	return e.Cause
}

// New creates a new BackpackError with the given code and message.
func New(code Code, msg string) error {
	return &BackpackError{Code: code, Msg: msg}
}

// NewWithDetails creates a new BackpackError with code, message, and details.
// Details map is copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &BackpackError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new BackpackError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &BackpackError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new BackpackError wrapping an underlying error with details.
// Details map is copied (nil if empty).
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &BackpackError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not a BackpackError.
func GetCode(err error) Code {
	var be *BackpackError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// AsBackpackError returns (*BackpackError, true) if err is or wraps a BackpackError.
func AsBackpackError(err error) (*BackpackError, bool) {
	var be *BackpackError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the appropriate exit code for an error.
// Returns 0 if err is nil, 2 for E_USAGE, 1 for all other errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}

// Print writes the error to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>
//	hint: <hint>        (only when Details["hint"] is set)
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var be *BackpackError
	if errors.As(err, &be) {
		fmt.Fprintf(w, "error_code: %s\n", be.Code)
		fmt.Fprintln(w, be.Msg)
		if hint := be.Details["hint"]; hint != "" {
			fmt.Fprintf(w, "hint: %s\n", hint)
		}
	} else {
		fmt.Fprintln(w, err.Error())
	}
}
