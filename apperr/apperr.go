// Package apperr defines the application error type and its codes.
// Every failure that reaches a user (CLI exit, web flash, JSON API) is an *AppError.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies an error category.
type ErrorCode string

const (
	// General errors (1xxx)
	ErrCodeInternal   ErrorCode = "E1000"
	ErrCodeValidation ErrorCode = "E1001"
	ErrCodeNotFound   ErrorCode = "E1002"

	// Service call errors (2xxx)
	ErrCodeTransport ErrorCode = "E2001"
	ErrCodeStatus    ErrorCode = "E2002"
	ErrCodeDecode    ErrorCode = "E2003"

	// Result document errors (3xxx)
	ErrCodeDocument ErrorCode = "E3001"

	// Configuration errors (4xxx)
	ErrCodeConfigParse   ErrorCode = "E4001"
	ErrCodeConfigInvalid ErrorCode = "E4002"
)

// AppError is an error with a code, a user-facing message and an optional cause.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
	Details any       `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the code to the status the web UI answers with.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeValidation, ErrCodeDocument:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTransport, ErrCodeStatus, ErrCodeDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with AppError
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Validation is shorthand for a user input error.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// UserMessage returns the text shown to a person: the AppError message
// (plus the service detail for status errors), or err.Error() otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	appErr, ok := As(err)
	if !ok {
		return err.Error()
	}
	if detail, ok := appErr.Details.(string); ok && detail != "" {
		return detail
	}
	return appErr.Message
}
