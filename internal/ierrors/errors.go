// Package ierrors defines the error taxonomy shared across the
// orchestration kernel.
//
// Maps to: original_source/src/errors.rs
package ierrors

import "fmt"

// Code is a stable error identifier surfaced to tool callers and IPC
// clients as `error_code`.
type Code string

const (
	CodeConfig          Code = "config"
	CodeDb              Code = "db"
	CodeProtocol        Code = "protocol"
	CodeDiff            Code = "diff"
	CodePolicy          Code = "policy"
	CodeIpc             Code = "ipc"
	CodePathViolation   Code = "path_violation"
	CodePatchConflict   Code = "patch_conflict"
	CodeNotFound        Code = "not_found"
	CodeUnauthorized    Code = "unauthorized"
	CodeAlreadyConsumed Code = "already_consumed"
)

// Error is the typed application error used throughout the core. It
// carries a stable Code alongside the usual wrapped cause so tool
// handlers can translate it into a `{error_code, error_message}`
// response without inspecting error strings.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// ErrorCode returns the stable code for this error, satisfying any
// interface of the shape `ErrorCode() string`.
func (e *Error) ErrorCode() string { return string(e.Code) }

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Config, Db, Protocol, Diff, Policy, Ipc construct a new untagged
// error of the matching category.
func Config(format string, args ...any) *Error   { return newErr(CodeConfig, format, args...) }
func Db(format string, args ...any) *Error       { return newErr(CodeDb, format, args...) }
func Protocol(format string, args ...any) *Error { return newErr(CodeProtocol, format, args...) }
func Diff(format string, args ...any) *Error     { return newErr(CodeDiff, format, args...) }
func Policy(format string, args ...any) *Error   { return newErr(CodePolicy, format, args...) }
func Ipc(format string, args ...any) *Error      { return newErr(CodeIpc, format, args...) }

// WrapConfig, WrapDb, etc. construct an error of the matching category
// wrapping an underlying cause.
func WrapConfig(err error, format string, args ...any) *Error {
	return wrapErr(CodeConfig, err, format, args...)
}
func WrapDb(err error, format string, args ...any) *Error {
	return wrapErr(CodeDb, err, format, args...)
}
func WrapProtocol(err error, format string, args ...any) *Error {
	return wrapErr(CodeProtocol, err, format, args...)
}
func WrapDiff(err error, format string, args ...any) *Error {
	return wrapErr(CodeDiff, err, format, args...)
}
func WrapPolicy(err error, format string, args ...any) *Error {
	return wrapErr(CodePolicy, err, format, args...)
}
func WrapIpc(err error, format string, args ...any) *Error {
	return wrapErr(CodeIpc, err, format, args...)
}

// PathViolation reports an attempted escape outside the workspace root.
func PathViolation(path string) *Error {
	return newErr(CodePathViolation, "path %q escapes workspace root", path)
}

// PatchConflict reports a content-hash mismatch on a target file.
func PatchConflict(path string) *Error {
	return newErr(CodePatchConflict, "target file %q changed since proposal", path)
}

// NotFound reports an unknown id of the given kind ("session", "approval", ...).
func NotFound(kind, id string) *Error {
	return newErr(CodeNotFound, "%s %q not found", kind, id)
}

// Unauthorized reports an ownership or allow-list violation.
func Unauthorized(reason string) *Error {
	return newErr(CodeUnauthorized, "%s", reason)
}

// AlreadyConsumed reports a repeated terminal transition on a record
// that was already consumed.
func AlreadyConsumed(kind, id string) *Error {
	return newErr(CodeAlreadyConsumed, "%s %q already consumed", kind, id)
}

// CodeOf extracts the stable error code from err, if any, returning ""
// otherwise.
func CodeOf(err error) string {
	var e *Error
	if ok := asError(err, &e); ok {
		return string(e.Code)
	}
	return ""
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
