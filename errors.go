package uring

import (
	"errors"
	"fmt"
	"syscall"
)

// Error is a structured ring error with operation context and errno mapping.
// Every failure in this package is surfaced as a typed, inspectable value;
// nothing here aborts the process.
type Error struct {
	Op    string        // Operation that failed (e.g., "SETUP", "ENTER")
	Code  ErrorCode     // High-level error category
	Errno syscall.Errno // Kernel errno (0 if not applicable)
	Msg   string        // Human-readable message
	Inner error         // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		if e.Errno != 0 {
			return fmt.Sprintf("uring: %s (op=%s, errno=%d)", msg, e.Op, int(e.Errno))
		}
		return fmt.Sprintf("uring: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("uring: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support by error code
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	// ErrCodeSetup: the kernel setup call failed. Fatal to construction.
	ErrCodeSetup ErrorCode = "ring setup failed"
	// ErrCodeMap: a ring region mapping failed after a successful setup.
	// Earlier mappings of the same attempt are already unwound.
	ErrCodeMap ErrorCode = "ring mapping failed"
	// ErrCodeEnter: the kernel entry call failed. Recoverable on the
	// submission path (the backlog is retried by the next Submit).
	ErrCodeEnter ErrorCode = "ring enter failed"
	// ErrCodeRegister: the register syscall failed.
	ErrCodeRegister ErrorCode = "ring register failed"
	// ErrCodePollingUnsupported: kernel-side polling was requested.
	// That mode is rejected by design, before any syscall is issued.
	ErrCodePollingUnsupported ErrorCode = "kernel-side polling not supported"
	// ErrCodeClosed: the ring handle was already torn down.
	ErrCodeClosed ErrorCode = "ring closed"
	// ErrCodeInvalidParameters: a configuration value is out of range.
	ErrCodeInvalidParameters ErrorCode = "invalid parameters"
)

// Sentinels for errors.Is checks without constructing an *Error.
var (
	ErrPollingUnsupported = &Error{Code: ErrCodePollingUnsupported}
	ErrClosed             = &Error{Code: ErrCodeClosed}
)

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:   op,
		Code: code,
		Msg:  msg,
	}
}

// WrapError wraps an existing error with ring context under the given code.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	e := &Error{
		Op:    op,
		Code:  code,
		Msg:   inner.Error(),
		Inner: inner,
	}
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		e.Errno = errno
	}
	return e
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Errno == errno
	}
	return false
}

// completionErrno converts a positive errno value from a CQE result code.
func completionErrno(code int32) error {
	return syscall.Errno(code)
}
