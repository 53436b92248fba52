package bksd

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured bksd error with job/device context and
// errno mapping.
type Error struct {
	Op      string    // operation that failed (e.g. "mount", "copy", "verify")
	JobID   string    // job ID, empty if not applicable
	DriveID string    // device UUID, empty if not applicable
	Code    ErrorCode // high-level error category
	Errno   syscall.Errno // kernel errno (0 if not applicable)
	Msg     string
	Inner   error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.JobID != "" {
		parts = append(parts, fmt.Sprintf("job=%s", e.JobID))
	}
	if e.DriveID != "" {
		parts = append(parts, fmt.Sprintf("drive=%s", e.DriveID))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("bksd: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("bksd: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support for comparing two structured errors by code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrorCode is a high-level error category.
type ErrorCode string

const (
	ErrCodeDeviceRemoved    ErrorCode = "device removed mid-transfer"
	ErrCodeMountFailed      ErrorCode = "mount failed"
	ErrCodeUnsupportedFS    ErrorCode = "unsupported filesystem"
	ErrCodeSourceNotFound   ErrorCode = "source path not found"
	ErrCodeDestinationError ErrorCode = "destination write error"
	ErrCodeHashMismatch     ErrorCode = "verification hash mismatch"
	ErrCodeOwnershipLookup  ErrorCode = "ownership lookup failed"
	ErrCodeIOError          ErrorCode = "I/O error"
	ErrCodeStoreError       ErrorCode = "store error"
	ErrCodeNotifyError      ErrorCode = "notification error"
	ErrCodeTimeout          ErrorCode = "timeout"
)

// NewError creates a new structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewJobError creates a new job-scoped structured error.
func NewJobError(op, jobID string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, JobID: jobID, Code: code, Msg: msg}
}

// WrapError wraps an existing error with bksd context, classifying known
// syscall errnos along the way.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if be, ok := inner.(*Error); ok {
		return &Error{
			Op: op, JobID: be.JobID, DriveID: be.DriveID,
			Code: be.Code, Errno: be.Errno, Msg: be.Msg, Inner: be.Inner,
		}
	}

	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{Op: op, Code: classifyErrno(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: ErrCodeIOError, Msg: inner.Error(), Inner: inner}
}

// classifyErrno maps the kernel errnos a storage driver reports when
// removable media is pulled mid-operation.
func classifyErrno(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENODEV, syscall.ENXIO, syscall.ENOMEDIUM, syscall.EMEDIUMTYPE, syscall.EIO:
		return ErrCodeDeviceRemoved
	case syscall.ENOENT:
		return ErrCodeSourceNotFound
	case syscall.ENOSPC, syscall.EROFS:
		return ErrCodeDestinationError
	default:
		return ErrCodeIOError
	}
}

// IsDeviceRemoved reports whether err (directly, wrapped, or a bare
// syscall.Errno/fs error) indicates the underlying media was removed
// mid-operation, as opposed to an ordinary I/O failure. The native copy
// engine classifies its own errors separately and does not call this.
func IsDeviceRemoved(err error) bool {
	if err == nil {
		return false
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Code == ErrCodeDeviceRemoved
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return classifyErrno(errno) == ErrCodeDeviceRemoved
	}
	return errors.Is(err, syscall.ENODEV) ||
		errors.Is(err, syscall.ENXIO) ||
		errors.Is(err, syscall.ENOMEDIUM) ||
		errors.Is(err, syscall.EMEDIUMTYPE) ||
		errors.Is(err, syscall.EIO)
}

// IsCode checks if an error matches a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
