package errors

import (
	"fmt"
	"net/http"

	"github.com/pixelweather/weather-push-backend/logger"
)

type ErrorType string

const (
	ValidationError ErrorType = "VALIDATION_ERROR"
	NotFoundError   ErrorType = "NOT_FOUND"
	ProviderError   ErrorType = "PROVIDER_UNAVAILABLE"
	StoreError      ErrorType = "STORE_ERROR"
	DeliveryError   ErrorType = "DELIVERY_FAILURE"
	ServerError     ErrorType = "SERVER_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Raw
}

// GetHTTPStatus returns the HTTP status code associated with the error.
func (e *AppError) GetHTTPStatus() int {
	if e.HTTPStatus == 0 {
		return getHTTPStatus(e.Type)
	}
	return e.HTTPStatus
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: getHTTPStatus(errType),
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

// Helper functions for common errors

func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NotFound(entity string, id interface{}) *AppError {
	return &AppError{
		Type:       NotFoundError,
		Message:    fmt.Sprintf("%s not found", entity),
		Detail:     fmt.Sprintf("ID: %v", id),
		HTTPStatus: http.StatusNotFound,
	}
}

// ProviderUnavailable records a weather-provider failure. These are recovered
// locally by falling through the provider chain and never surface to a caller
// as an HTTP error; the type exists so logs and wrapped errors stay typed.
func ProviderUnavailable(provider string, err error) *AppError {
	return &AppError{
		Type:       ProviderError,
		Message:    fmt.Sprintf("weather provider %s unavailable", provider),
		Detail:     err.Error(),
		HTTPStatus: http.StatusBadGateway,
		Raw:        err,
	}
}

func NewStoreError(err error) *AppError {
	logger.GetLogger().Errorw("Store error", "error", err)
	return &AppError{
		Type:       StoreError,
		Message:    "Store operation failed",
		Detail:     "Please try again later",
		HTTPStatus: http.StatusInternalServerError,
		Raw:        err,
	}
}

func DeliveryFailed(token string, err error) *AppError {
	return &AppError{
		Type:       DeliveryError,
		Message:    "Push delivery failed",
		Detail:     fmt.Sprintf("token %s: %v", logger.MaskToken(token), err),
		HTTPStatus: http.StatusBadGateway,
		Raw:        err,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:       ServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case ProviderError, DeliveryError:
		return http.StatusBadGateway
	case StoreError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
