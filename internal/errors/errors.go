package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a ctxpack error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"        // 400
	ErrFileNotFound         ErrorCode = "FILE_NOT_FOUND"         // 404
	ErrNotFound             ErrorCode = "NOT_FOUND"              // 404
	ErrMissingEssentialFile ErrorCode = "MISSING_ESSENTIAL_FILE" // 424
	ErrManifestRequired     ErrorCode = "MANIFEST_REQUIRED"      // 424
	ErrCancelled            ErrorCode = "CANCELLED"              // 499
	ErrInternal             ErrorCode = "INTERNAL"               // 500
)

// CtxError represents a structured error with code, status, and details.
type CtxError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CtxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CtxError {
	return &CtxError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewFileNotFound creates a 404 error for a file path that does not exist.
func NewFileNotFound(path string) *CtxError {
	return &CtxError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNotFound creates a 404 error for a lookup that matched nothing.
func NewNotFound(what, identifier string) *CtxError {
	return &CtxError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", what, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewMissingEssentialFile is returned when an essential file is absent and the
// caller chose to abort. The context build stops; nothing is emitted.
func NewMissingEssentialFile(path string) *CtxError {
	return &CtxError{
		Code:    ErrMissingEssentialFile,
		Status:  424,
		Message: fmt.Sprintf("essential file missing: %s; context build interrupted", path),
		Details: map[string]any{"path": path},
	}
}

// NewManifestRequired is returned by flows that cannot run without a manifest.
func NewManifestRequired(source string) *CtxError {
	msg := "manifest required but none could be loaded"
	if source != "" {
		msg = fmt.Sprintf("manifest required but could not be loaded from %s", source)
	}
	return &CtxError{
		Code:    ErrManifestRequired,
		Status:  424,
		Message: msg,
		Details: map[string]any{"source": source},
	}
}

// NewCancelled creates a 499 error when the caller's context is done.
func NewCancelled(op string) *CtxError {
	return &CtxError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CtxError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CtxError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// As unwraps err into a *CtxError if one is in its chain.
func As(err error) (*CtxError, bool) {
	var cErr *CtxError
	if stderrors.As(err, &cErr) {
		return cErr, true
	}
	return nil, false
}

// Is checks if an error is a CtxError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := As(err); ok {
		return cErr.Code == code
	}
	return false
}

// MissingPath returns the path carried by a MISSING_ESSENTIAL_FILE error.
func MissingPath(err error) (string, bool) {
	cErr, ok := As(err)
	if !ok || cErr.Code != ErrMissingEssentialFile {
		return "", false
	}
	p, ok := cErr.Details["path"].(string)
	return p, ok
}
