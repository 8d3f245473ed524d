package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Device errors (1xxx)
	ErrCodeDeviceNotFound  ErrorCode = "DEVICE_1001"
	ErrCodeInvalidDeviceID ErrorCode = "DEVICE_1002"
	ErrCodeInvalidStatus   ErrorCode = "DEVICE_1003"

	// Validation errors (2xxx)
	ErrCodeMissingField   ErrorCode = "VALID_2001"
	ErrCodeInvalidRequest ErrorCode = "VALID_2002"

	// Chat proxy errors (3xxx)
	ErrCodeChatUnavailable ErrorCode = "CHAT_3001"
	ErrCodeChatUpstream    ErrorCode = "CHAT_3002"
	ErrCodeChatTransport   ErrorCode = "CHAT_3003"

	// Database errors (5xxx)
	ErrCodeDatabaseError ErrorCode = "DB_5001"

	// Server errors (6xxx)
	ErrCodeInternalServerError ErrorCode = "SERVER_6001"
	ErrCodeConfigurationError  ErrorCode = "SERVER_6003"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on code so sentinel comparisons work across instances
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, status int, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Status:  status,
		Cause:   cause,
	}
}

// Sentinels for errors.Is checks
var (
	ErrDeviceNotFound  = &AppError{Code: ErrCodeDeviceNotFound}
	ErrChatUnavailable = &AppError{Code: ErrCodeChatUnavailable}
	ErrChatUpstream    = &AppError{Code: ErrCodeChatUpstream}
)

func ErrDeviceNotFoundID(id string) *AppError {
	return NewAppError(ErrCodeDeviceNotFound, http.StatusNotFound, "Device not found", fmt.Sprintf("Device ID: %s", id), nil)
}

func ErrInvalidDeviceID(id string) *AppError {
	return NewAppError(ErrCodeInvalidDeviceID, http.StatusBadRequest, "Invalid device ID", fmt.Sprintf("Device ID: %s", id), nil)
}

func ErrInvalidDeviceStatus(status string) *AppError {
	return NewAppError(ErrCodeInvalidStatus, http.StatusBadRequest, "Invalid device status", fmt.Sprintf("Status: %s", status), nil)
}

func ErrMissingField(field string) *AppError {
	return NewAppError(ErrCodeMissingField, http.StatusBadRequest, "Missing required field", fmt.Sprintf("Field: %s", field), nil)
}

func ErrInvalidRequest(details string) *AppError {
	return NewAppError(ErrCodeInvalidRequest, http.StatusBadRequest, "Invalid request", details, nil)
}

// ErrChatRateLimited maps an upstream 429 to a temporarily-unavailable error
func ErrChatRateLimited(cause error) *AppError {
	return NewAppError(ErrCodeChatUnavailable, http.StatusServiceUnavailable, "Chat service temporarily unavailable", "", cause)
}

// ErrChatUpstreamStatus passes an upstream HTTP failure through with its status code
func ErrChatUpstreamStatus(status int, body string) *AppError {
	return NewAppError(ErrCodeChatUpstream, status, "Chat upstream error", body, nil)
}

func ErrChatTransport(cause error) *AppError {
	return NewAppError(ErrCodeChatTransport, http.StatusBadGateway, "Chat upstream unreachable", "", cause)
}

func ErrDatabaseError(operation string, cause error) *AppError {
	return NewAppError(ErrCodeDatabaseError, http.StatusInternalServerError, "Database operation failed", fmt.Sprintf("Operation: %s", operation), cause)
}

func ErrConfigurationError(config string) *AppError {
	return NewAppError(ErrCodeConfigurationError, http.StatusInternalServerError, "Configuration error", fmt.Sprintf("Config: %s", config), nil)
}

// GetHTTPStatusCode maps an error to an HTTP status code
func GetHTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
