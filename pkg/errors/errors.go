// Package errors provides structured error types for RunGhost.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP API
//   - Machine-readable error codes for programmatic handling
//   - A clean split between fatal errors and collected warnings
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - CONFIG_*: Configuration failures (fatal to the whole request)
//   - WORKSPACE_* / MANIFEST_*: Workspace scanning failures
//   - REGISTRY_* / RATE_*: Package registry failures
//   - CACHE_*: Cache store failures (degrade to uncached operation)
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfigInvalid, "workspace path missing")
//	if errors.Is(err, errors.ErrCodeConfigInvalid) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeRegistry, origErr, "failed to list scope %s", scope)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration errors, fatal to the whole request
	ErrCodeConfigInvalid Code = "CONFIG_INVALID"

	// Workspace scanning errors
	ErrCodeWorkspaceUnreadable Code = "WORKSPACE_UNREADABLE"
	ErrCodeManifestInvalid     Code = "MANIFEST_INVALID"

	// Registry errors
	ErrCodeRegistry    Code = "REGISTRY_ERROR"
	ErrCodeRateLimited Code = "RATE_LIMITED"
	ErrCodeNotFound    Code = "NOT_FOUND"

	// Cache store errors, degrade to uncached operation
	ErrCodeCache Code = "CACHE_ERROR"

	// Explicit cancellation, propagated cleanly
	ErrCodeCancelled Code = "CANCELLED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err must abort the whole request. Per-manifest
// failures, registry degradations, and cache failures are collected as
// warnings on the result; everything else short-circuits.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeManifestInvalid, ErrCodeRegistry, ErrCodeRateLimited, ErrCodeCache, ErrCodeNotFound:
		return false
	}
	return true
}
