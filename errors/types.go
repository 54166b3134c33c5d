package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Input validation errors
	ErrCodeValidation ErrorCode = "VALIDATION"

	// Record lifecycle errors
	ErrCodeDuplicateLabel ErrorCode = "DUPLICATE_LABEL"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// External tool errors
	ErrCodeExternalTool ErrorCode = "EXTERNAL_TOOL"
	ErrCodeAlreadyGone  ErrorCode = "ALREADY_GONE"
	ErrCodeToolMissing  ErrorCode = "TOOL_MISSING"

	// Persistent store errors
	ErrCodeStateCorruption ErrorCode = "STATE_CORRUPTION"
	ErrCodeStateWrite      ErrorCode = "STATE_WRITE"

	// General errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ParError represents a structured error with context
type ParError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *ParError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ParError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *ParError) WithDetail(key string, value interface{}) *ParError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *ParError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new ParError
func New(code ErrorCode, message string) *ParError {
	return &ParError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a ParError
func Wrap(err error, code ErrorCode, message string) *ParError {
	return &ParError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific ParError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	parErr, ok := err.(*ParError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return parErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	parErr, ok := err.(*ParError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return parErr.Code
}

// IsRecoverable reports whether an error may be swallowed during cleanup.
// Only "the resource is already gone" failures qualify; everything else
// must abort the operation that hit it.
func IsRecoverable(err error) bool {
	return Is(err, ErrCodeAlreadyGone) || Is(err, ErrCodeNotFound)
}
