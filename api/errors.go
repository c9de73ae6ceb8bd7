// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and the legacy status-code taxonomy for hioload-mt.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument   = NewError(ErrCodeInvalidArgument, "invalid argument")
	ErrResourceExhausted = NewError(ErrCodeResourceExhausted, "resource exhausted")
	ErrTimeout           = NewError(ErrCodeTimeout, "operation timeout")
	ErrInterrupted       = NewError(ErrCodeInterrupted, "operation interrupted")
	ErrNotSupported      = NewError(ErrCodeNotSupported, "operation not supported")
	ErrNotFound          = NewError(ErrCodeNotFound, "resource not found")
	ErrNotOpen           = NewError(ErrCodeNotOpen, "no listening socket is open")
	ErrAlreadyOpen       = NewError(ErrCodeAlreadyOpen, "listening socket already open")
	ErrInvalidated       = NewError(ErrCodeInvalidated, "object has been invalidated")
	ErrDuplicateClock    = NewError(ErrCodeAlreadyExists, "clock id already registered")
	ErrProtocolViolation = NewError(ErrCodeProtocol, "boundary detector contract violated")
	ErrNotRunning        = NewError(ErrCodeNotRunning, "component is not running")
	ErrStopTimeout       = NewError(ErrCodeStopTimeout, "workers did not stop in time")
	ErrChannelClosed     = NewError(ErrCodeClosed, "channel is closed")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeTimeout
	ErrCodeInterrupted
	ErrCodeNotSupported
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeNotOpen
	ErrCodeAlreadyOpen
	ErrCodeInvalidated
	ErrCodeProtocol
	ErrCodeNotRunning
	ErrCodeStopTimeout
	ErrCodeClosed
	ErrCodeInternal
)

// Status returns the numeric status for the code: negative for hard
// failures, 0 for timeouts, positive for retryable interruptions.
func (c ErrorCode) Status() int {
	switch c {
	case ErrCodeOK, ErrCodeTimeout:
		return 0
	case ErrCodeInterrupted, ErrCodeAlreadyExists:
		return 1
	case ErrCodeNotOpen:
		return -2
	case ErrCodeInvalidated:
		return -3
	default:
		return -1
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is matches any *Error carrying the same code, so a contextualized copy
// still satisfies errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext returns a copy of the error carrying an extra context entry.
// Sentinels are never mutated.
func (e *Error) WithContext(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{Code: e.Code, Message: e.Message, Context: ctx}
}

// Status maps err onto the status taxonomy. A nil error is 0. Errors that do
// not carry an *Error are hard failures (-1).
func Status(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code.Status()
	}
	return -1
}

// Code extracts the ErrorCode from err, or ErrCodeInternal for foreign errors.
func Code(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
