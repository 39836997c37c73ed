package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/tuplespace/internal/store"
)

// Error is a structured engine error. Fatal kinds (usage, checkpoint) abort
// the calling operation; conflicts are retried internally and surface only
// when retries are exhausted.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the public operation that failed (produce, consume, ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Code categorizes engine errors.
type Code string

const (
	// CodeUsage indicates a malformed call: channel/pattern length
	// mismatch, an install that would match immediately, or installing an
	// already-installed group. Never retried.
	CodeUsage Code = "USAGE_ERROR"

	// CodeCheckpoint indicates an invalid or unknown root passed to
	// retrieve or reset. Fatal to that call.
	CodeCheckpoint Code = "CHECKPOINT_ERROR"

	// CodeConflict indicates a transaction conflict that survived the
	// retry budget. The whole operation may be re-issued.
	CodeConflict Code = "TRANSACTION_CONFLICT"

	// CodeMatcher indicates the caller-supplied matcher failed.
	CodeMatcher Code = "MATCHER_ERROR"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsUsageError reports whether err is a fatal usage error.
// Uses errors.As to handle wrapped errors.
func IsUsageError(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == CodeUsage
	}
	return false
}

// IsCheckpointError reports whether err is an invalid-root error.
func IsCheckpointError(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == CodeCheckpoint
	}
	return false
}

// IsRetriable reports whether the whole operation may be re-issued.
// Matches both exhausted-retry engine errors and raw store conflicts.
func IsRetriable(err error) bool {
	if errors.Is(err, store.ErrConflict) {
		return true
	}
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == CodeConflict
	}
	return false
}

func usageError(op, format string, args ...any) *Error {
	return &Error{Code: CodeUsage, Op: op, Message: fmt.Sprintf(format, args...)}
}

func checkpointError(op, root string, err error) *Error {
	return &Error{
		Code:    CodeCheckpoint,
		Op:      op,
		Message: fmt.Sprintf("root %q is not a known checkpoint", root),
		Err:     err,
	}
}

func conflictError(op string, err error) *Error {
	return &Error{
		Code:    CodeConflict,
		Op:      op,
		Message: "transaction conflict persisted past retry budget",
		Err:     err,
	}
}

func matcherError(op string, err error) *Error {
	return &Error{
		Code:    CodeMatcher,
		Op:      op,
		Message: "matcher failed",
		Err:     err,
	}
}
