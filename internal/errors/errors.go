package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an Onion error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrDemoReadOnly   ErrorCode = "DEMO_READ_ONLY"  // 403
	ErrCameraDenied   ErrorCode = "CAMERA_DENIED"   // 403, recoverable
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrNoCamera       ErrorCode = "NO_CAMERA"       // 404, needs different hardware
	ErrSuperseded     ErrorCode = "SUPERSEDED"      // 409
	ErrNoContent      ErrorCode = "NO_CONTENT"      // 422
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrEncodeFailed   ErrorCode = "ENCODE_FAILED"   // 502
	ErrArchiveFailed  ErrorCode = "ARCHIVE_FAILED"  // 502
)

// OnionError represents a structured error with code, status, and details.
type OnionError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// cause is the underlying error, if any. Not exposed to tool clients.
	cause error
}

// Error implements the error interface.
func (e *OnionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *OnionError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *OnionError {
	return &OnionError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing project, scene or frame.
func NewNotFound(kind, identifier string) *OnionError {
	return &OnionError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewDemoReadOnly creates a 403 error for mutations against a demo project.
func NewDemoReadOnly(projectID string) *OnionError {
	return &OnionError{
		Code:    ErrDemoReadOnly,
		Status:  403,
		Message: fmt.Sprintf("project %s is an example and cannot be changed", projectID),
		Details: map[string]any{"project": projectID},
	}
}

// NewNoContent creates a 422 error when there is nothing to assemble or export.
func NewNoContent(what string) *OnionError {
	return &OnionError{
		Code:    ErrNoContent,
		Status:  422,
		Message: fmt.Sprintf("no frames to %s", what),
	}
}

// NewCameraDenied creates a 403 error for a camera permission or device failure.
// The caller may retry after the user grants access.
func NewCameraDenied(err error) *OnionError {
	msg := "camera access denied"
	if err != nil {
		msg = fmt.Sprintf("camera access denied: %v", err)
	}
	return &OnionError{
		Code:    ErrCameraDenied,
		Status:  403,
		Message: msg,
		cause:   err,
	}
}

// NewNoCamera creates a 404 error when no capture device is present at all.
func NewNoCamera() *OnionError {
	return &OnionError{
		Code:    ErrNoCamera,
		Status:  404,
		Message: "no camera available",
	}
}

// NewSuperseded creates a 409 error for a result discarded in favour of a newer request.
func NewSuperseded(tag uint64) *OnionError {
	return &OnionError{
		Code:    ErrSuperseded,
		Status:  409,
		Message: fmt.Sprintf("request %d was superseded", tag),
		Details: map[string]any{"tag": tag},
	}
}

// NewCancelled creates a 499 error for a cancelled operation.
func NewCancelled(op string) *OnionError {
	return &OnionError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewEncodeFailed creates a 502 error when the video encoder fails.
func NewEncodeFailed(err error) *OnionError {
	return &OnionError{
		Code:    ErrEncodeFailed,
		Status:  502,
		Message: fmt.Sprintf("video encoding failed: %v", err),
		cause:   err,
	}
}

// NewArchiveFailed creates a 502 error when the archive writer fails.
func NewArchiveFailed(err error) *OnionError {
	return &OnionError{
		Code:    ErrArchiveFailed,
		Status:  502,
		Message: fmt.Sprintf("archive write failed: %v", err),
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *OnionError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &OnionError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is an OnionError with the given code.
// Wrapped errors are unwrapped.
func Is(err error, code ErrorCode) bool {
	var oErr *OnionError
	if stderrors.As(err, &oErr) {
		return oErr.Code == code
	}
	return false
}

// Retryable reports whether a UI should offer the user a retry path.
func Retryable(err error) bool {
	var oErr *OnionError
	if !stderrors.As(err, &oErr) {
		return false
	}
	switch oErr.Code {
	case ErrCameraDenied, ErrEncodeFailed, ErrArchiveFailed, ErrSuperseded, ErrCancelled:
		return true
	}
	return false
}
