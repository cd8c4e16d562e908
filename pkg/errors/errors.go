package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches by code so copies produced by WithInternal still compare equal
// to their sentinel under errors.Is.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application. The offline and
// asset-unavailable values mirror the synthesized responses the gateway
// hands out when both the origin and the cache come up empty.
var (
	ErrOffline = &AppError{
		Code:       "OFFLINE",
		Message:    "You are currently offline",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrAssetUnavailable = &AppError{
		Code:       "ASSET_UNAVAILABLE",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrPrecacheFailed = &AppError{
		Code:       "PRECACHE_FAILED",
		Message:    "Failed to populate the asset cache",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrBadPushPayload = &AppError{
		Code:       "BAD_PUSH_PAYLOAD",
		Message:    "Push payload is not valid JSON",
		StatusCode: http.StatusBadRequest,
	}

	ErrSubscriptionNotFound = &AppError{
		Code:       "SUBSCRIPTION_NOT_FOUND",
		Message:    "Push subscription not found",
		StatusCode: http.StatusNotFound,
	}

	ErrUnknownSyncTag = &AppError{
		Code:       "UNKNOWN_SYNC_TAG",
		Message:    "Unknown sync tag",
		StatusCode: http.StatusNotFound,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
