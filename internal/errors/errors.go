package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Forge error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrSaveNotFound       ErrorCode = "SAVE_NOT_FOUND"      // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrInvalidTransition  ErrorCode = "INVALID_TRANSITION"  // 409
	ErrTurnInFlight       ErrorCode = "TURN_IN_FLIGHT"      // 409
	ErrStaleResponse      ErrorCode = "STALE_RESPONSE"      // 409
	ErrNothingToUndo      ErrorCode = "NOTHING_TO_UNDO"     // 409
	ErrStorageCorrupted   ErrorCode = "STORAGE_CORRUPTED"   // 422
	ErrCancelled          ErrorCode = "CANCELLED"           // 499
	ErrInternal           ErrorCode = "INTERNAL"            // 500
	ErrGenerationFailure  ErrorCode = "GENERATION_FAILURE"  // 502
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE" // 503
)

// ForgeError represents a structured error with code, status, and details.
type ForgeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ForgeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ForgeError {
	return &ForgeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewSaveNotFound creates a 404 error for a missing save slot.
func NewSaveNotFound(id string) *ForgeError {
	return &ForgeError{
		Code:    ErrSaveNotFound,
		Status:  404,
		Message: fmt.Sprintf("save not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *ForgeError {
	return &ForgeError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInvalidTransition creates a 409 error for an operation that is not legal
// in the current phase.
func NewInvalidTransition(op, phase string) *ForgeError {
	return &ForgeError{
		Code:    ErrInvalidTransition,
		Status:  409,
		Message: fmt.Sprintf("%s is not allowed in phase %s", op, phase),
		Details: map[string]any{"operation": op, "phase": phase},
	}
}

// NewTurnInFlight creates a 409 error for a re-entrant turn submission.
func NewTurnInFlight() *ForgeError {
	return &ForgeError{
		Code:    ErrTurnInFlight,
		Status:  409,
		Message: "a turn is already in flight",
	}
}

// NewStaleResponse creates a 409 error for a service response that arrived
// after the session moved on.
func NewStaleResponse(expected, got uint64) *ForgeError {
	return &ForgeError{
		Code:    ErrStaleResponse,
		Status:  409,
		Message: "response discarded: session has moved on",
		Details: map[string]any{"expected_turn": expected, "response_turn": got},
	}
}

// NewNothingToUndo creates a 409 error when no undo snapshot exists.
func NewNothingToUndo() *ForgeError {
	return &ForgeError{
		Code:    ErrNothingToUndo,
		Status:  409,
		Message: "nothing to undo",
	}
}

// NewStorageCorrupted creates a 422 error for an unparsable save collection.
// quarantineKey is where the raw bytes were preserved (empty if that failed).
func NewStorageCorrupted(quarantineKey string, cause error) *ForgeError {
	msg := "saved games were unreadable and have been quarantined"
	if quarantineKey == "" {
		msg = "saved games were unreadable"
	}
	details := map[string]any{}
	if quarantineKey != "" {
		details["quarantine_key"] = quarantineKey
	}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &ForgeError{
		Code:    ErrStorageCorrupted,
		Status:  422,
		Message: msg,
		Details: details,
	}
}

// NewCancelled creates a 499 error for a cancelled operation.
func NewCancelled(op string) *ForgeError {
	return &ForgeError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ForgeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ForgeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// NewGenerationFailure creates a 502 error for a failed or unparsable
// narrative/creation service call.
func NewGenerationFailure(op string, err error) *ForgeError {
	msg := fmt.Sprintf("%s failed", op)
	if err != nil {
		msg = fmt.Sprintf("%s failed: %v", op, err)
	}
	return &ForgeError{
		Code:    ErrGenerationFailure,
		Status:  502,
		Message: msg,
		Details: map[string]any{"operation": op},
	}
}

// NewStorageUnavailable creates a 503 error when the persistent store cannot
// be reached.
func NewStorageUnavailable(err error) *ForgeError {
	msg := "storage unavailable"
	if err != nil {
		msg = fmt.Sprintf("storage unavailable: %v", err)
	}
	return &ForgeError{
		Code:    ErrStorageUnavailable,
		Status:  503,
		Message: msg,
	}
}

// Is checks if an error is a ForgeError with the given code.
// Wrapped errors are unwrapped.
func Is(err error, code ErrorCode) bool {
	var fErr *ForgeError
	if stderrors.As(err, &fErr) {
		return fErr.Code == code
	}
	return false
}

// As extracts a ForgeError from err, wrapping anything else as INTERNAL.
func As(err error) *ForgeError {
	if err == nil {
		return nil
	}
	var fErr *ForgeError
	if stderrors.As(err, &fErr) {
		return fErr
	}
	return NewInternal(err)
}
