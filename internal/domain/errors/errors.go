package errors

import (
	"errors"
	"fmt"
)

var (
	// Payment transaction errors
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrAlreadyFinalized  = errors.New("payment already finalized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidAmount     = errors.New("invalid amount")

	// Order errors
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderPaid     = errors.New("order is already paid")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Gateway errors
	ErrGatewayNotFound    = errors.New("payment gateway not found")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayTimeout     = errors.New("gateway request timeout")

	// Session errors
	ErrSessionNotFound = errors.New("payment session not found")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
