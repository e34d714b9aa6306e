package models

import (
	"fmt"
	"net/http"
)

// ErrorType categorizes ledger boundary errors. Business-rule failures in
// the consumption path are a boolean result, not an error; AppError covers
// everything the API layer must map to a status code.
type ErrorType string

const (
	// ErrorTypeValidation represents malformed input (400)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents a missing organization or subscription (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypePaymentRequired represents an ineligible consumption request (402)
	ErrorTypePaymentRequired ErrorType = "payment_required"
	// ErrorTypeTimeout represents database timeouts (504)
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInternal represents infrastructure failures (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError is a structured application error carrying its HTTP mapping.
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypePaymentRequired:
		return http.StatusPaymentRequired
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewPaymentRequiredError creates the 402-equivalent error the API layer
// maps a false consumption result to.
func NewPaymentRequiredError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypePaymentRequired,
		Message:    message,
		StatusCode: http.StatusPaymentRequired,
		Retryable:  false,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  true,
		Cause:      cause,
	}
}
