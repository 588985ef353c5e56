// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pump-sim/backend/internal/logger"
	"github.com/pump-sim/backend/internal/playback"
	"github.com/pump-sim/backend/internal/session"
)

// Error codes shared by the REST and WebSocket surfaces.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidation         = "VALIDATION_ERROR"
	CodeOutOfRange         = "OUT_OF_RANGE"
	CodeInvalidSpeed       = "INVALID_SPEED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInvalidType        = "INVALID_TYPE"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeValidation,
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    CodeServiceUnavailable,
		Message: message,
	}
}

// FromDomainError maps controller and session errors to API errors.
func FromDomainError(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, playback.ErrOutOfRange):
		return &APIError{Status: http.StatusBadRequest, Code: CodeOutOfRange, Message: "frame out of range", Details: err.Error()}
	case errors.Is(err, playback.ErrInvalidSpeed):
		return &APIError{Status: http.StatusBadRequest, Code: CodeInvalidSpeed, Message: "speed multiplier must be a positive number", Details: err.Error()}
	case errors.Is(err, session.ErrNoSession), errors.Is(err, playback.ErrClosed):
		return NewServiceUnavailableError("simulation is not running")
	case errors.Is(err, session.ErrNoStore):
		return NewServiceUnavailableError("analytics store is not available")
	default:
		return NewInternalError("request failed", err)
	}
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = FromDomainError(err)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error().
			Str("path", c.Request().URL.Path).
			Str("code", apiErr.Code).
			Str("details", apiErr.Details).
			Msg(apiErr.Message)
	}

	if err := RespondWithError(c, apiErr); err != nil {
		logger.Warn().Err(err).Msg("failed to write error response")
	}
}

// RespondWithError writes err as the JSON response body with its status.
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
