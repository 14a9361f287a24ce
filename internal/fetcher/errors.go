package fetcher

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error that occurred during a fetch operation
type ErrorType string

const (
	// ErrorTypeTransport indicates a network-level failure or a non-2xx upstream response
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeParse indicates the upstream document was retrieved but the expected markup shape was absent
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeValidation indicates malformed caller input, rejected before any upstream call
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUnexpected indicates an error of unknown origin
	ErrorTypeUnexpected ErrorType = "unexpected"
)

// Error represents a structured error from a fetch-parse-normalize operation
type Error struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a transport error. statusCode is zero for
// network-level failures where no upstream response was received.
func NewTransportError(statusCode int, cause error) *Error {
	return &Error{
		Type:       ErrorTypeTransport,
		StatusCode: statusCode,
		Message:    "upstream request failed",
		Cause:      cause,
	}
}

// NewParseError creates a parse error
func NewParseError(message string) *Error {
	return &Error{
		Type:    ErrorTypeParse,
		Message: message,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// AsError extracts a structured *Error from err if one is present in its chain
func AsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
