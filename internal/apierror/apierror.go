// Package apierror defines the command error taxonomy shared by the
// colocation, upgrade and dispatch services. Validation errors are surfaced
// before any mutation; internal errors indicate a race or bug, not user
// error, and are never retried here.
package apierror

import (
	"errors"
	"fmt"
)

// Code classifies a command failure
type Code string

const (
	CodeInvalidOptions                Code = "InvalidOptions"
	CodeInvalidNamespace              Code = "InvalidNamespace"
	CodeCommandNotSupported           Code = "CommandNotSupported"
	CodeInternalError                 Code = "InternalError"
	CodeFailedToParse                 Code = "FailedToParse"
	CodeNamespaceNotFound             Code = "NamespaceNotFound"
	CodeBackgroundOperationInProgress Code = "BackgroundOperationInProgress"
)

// Error is a command failure carrying a stable code for the command surface
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a command error with the given code
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a command error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a command error
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the command error code, or CodeInternalError when err is
// not a command error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

// Is reports whether err is a command error with the given code
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
