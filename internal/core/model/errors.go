package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a failure for retry decisions and API serialization.
type ErrorCode string

const (
	// CodeTransient covers network, timeout and rate-limit failures; retryable.
	CodeTransient ErrorCode = "TRANSIENT"
	// CodePermanent covers malformed input and auth failures; never retried.
	CodePermanent ErrorCode = "PERMANENT"
	// CodeConflict covers invalid merge input, e.g. an empty cluster.
	CodeConflict ErrorCode = "CONFLICT"
)

type SyncError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Err }

func Transient(err error, format string, args ...interface{}) *SyncError {
	return &SyncError{Code: CodeTransient, Message: fmt.Sprintf(format, args...), Err: err}
}

func Permanent(err error, format string, args ...interface{}) *SyncError {
	return &SyncError{Code: CodePermanent, Message: fmt.Sprintf(format, args...), Err: err}
}

func Conflict(format string, args ...interface{}) *SyncError {
	return &SyncError{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == CodeTransient
	}
	return false
}

// PartialBatchError wraps per-item failures from a best-effort batch.
// It is reported alongside aggregate counts, never used to abort the batch.
type PartialBatchError struct {
	Failures []string
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%d item(s) failed: %s", len(e.Failures), strings.Join(e.Failures, "; "))
}
