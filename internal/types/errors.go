package types

import (
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
// Handlers use these constants instead of hardcoded strings.
type ErrorCode string

const (
	// Validation (400): client-caused, never retried by the bridge.
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidField ErrorCode = "validation_invalid_field"

	// Delivery (500): broker-caused. The caller's upstream retry policy is
	// the remedy; the bridge keeps no outbox.
	ErrCodeDeliveryFailed ErrorCode = "delivery_failed"

	// Internal (500)
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its HTTP status code. Unrecognized codes
// map to 500 as a safe default.
func (c ErrorCode) HTTPStatus() int {
	switch {
	case strings.HasPrefix(string(c), "validation_"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. All handler and domain
// errors are expressed as AppError to enable consistent error formatting and
// HTTP status mapping.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewAppError creates an AppError with the given code, client-safe message,
// and optional wrapped cause.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for the error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}
