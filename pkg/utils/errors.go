package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// CustomError represents a custom application error
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *CustomError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// AsCustomError unwraps err into a CustomError if one is in the chain
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Common error constructors
func NewBadRequestError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

func NewInternalServerError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusInternalServerError,
		Message: message,
	}
}

func NewValidationError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: "Validation failed",
		Detail:  detail,
	}
}

func NewUnauthorizedError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusUnauthorized,
		Message: "Unauthorized",
		Detail:  detail,
	}
}

// NewInsufficientCreditsError is returned when a user cannot pay for a pipeline run
func NewInsufficientCreditsError(balance, cost int) *CustomError {
	return &CustomError{
		Code:    http.StatusPaymentRequired,
		Message: "Nedostatek kreditů",
		Detail:  fmt.Sprintf("balance %d, required %d", balance, cost),
	}
}

// Scraping specific errors
func NewScrapingError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadGateway,
		Message: "Scraping failed",
		Detail:  detail,
	}
}

func NewLLMError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadGateway,
		Message: "LLM processing failed",
		Detail:  detail,
	}
}

// NewInvalidAdURLError returns an error when an ad URL does not match a known detail page
func NewInvalidAdURLError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: "Neplatný formát URL.",
		Detail:  detail,
	}
}

// NewRequestTooLargeError returns an error for bodies over the size limit
func NewRequestTooLargeError(limit int64) *CustomError {
	return &CustomError{
		Code:    http.StatusRequestEntityTooLarge,
		Message: "Request body too large",
		Detail:  fmt.Sprintf("limit is %d bytes", limit),
	}
}
