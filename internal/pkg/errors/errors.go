package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the error type surfaced to callers of the lifecycle manager.
// Code is stable and machine-readable; Message is shown to the user.
type AppError struct {
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Internal error       `json:"-"`
	Details  interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Error codes
const (
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNameConflict      = "NAME_CONFLICT"
	ErrCodeOperationFailed   = "OPERATION_FAILED"
	ErrCodeDeletionDenied    = "DELETION_DENIED"
	ErrCodeUnknownService    = "UNKNOWN_SERVICE"
	ErrCodeMalformedResource = "MALFORMED_RESOURCE"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// Internal creates an internal error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

// Validation creates a validation error carrying field-keyed messages.
func Validation(message string, fields map[string]string) *AppError {
	return New(ErrCodeValidation, message).WithDetails(fields)
}

// NameConflict reports that a resource name is already taken. serverSide is
// set when the backend rejected a name the client believed was free.
func NameConflict(name string, serverSide bool) *AppError {
	msg := fmt.Sprintf("a resource named %q already exists", name)
	if serverSide {
		msg = fmt.Sprintf("the server rejected %q: a resource with this name was created elsewhere", name)
	}
	return New(ErrCodeNameConflict, msg).WithDetails(map[string]string{"name": name})
}

// OperationFailed wraps an asynchronous operation failure.
func OperationFailed(operation string, err error) *AppError {
	return Wrap(err, ErrCodeOperationFailed, fmt.Sprintf("%s failed", operation))
}

// DeletionDenied reports why a resource may not be deleted.
func DeletionDenied(resourceName, reason string) *AppError {
	return New(ErrCodeDeletionDenied,
		fmt.Sprintf("cannot delete %s: %s", resourceName, reason)).
		WithDetails(map[string]string{"reason": reason})
}

// UnknownService reports a service kind outside the supported set.
func UnknownService(kind string) *AppError {
	return New(ErrCodeUnknownService, fmt.Sprintf("unknown service kind %q", kind))
}

// MalformedResource reports a cached resource that cannot be interpreted.
func MalformedResource(id string, err error) *AppError {
	return Wrap(err, ErrCodeMalformedResource, fmt.Sprintf("resource %s has a malformed configuration", id))
}

// NotFound creates a not found error
func NotFound(what string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", what))
}

// InvalidTransition reports an illegal state machine transition.
func InvalidTransition(from, to string) *AppError {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("invalid transition %s -> %s", from, to))
}

// CodeOf returns the AppError code in err's chain, or ErrCodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
