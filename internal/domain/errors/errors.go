package errors

import (
	"errors"
	"fmt"
)

var (
	// Webhook errors
	ErrOrderReferenceRequired = errors.New("order reference required")
	ErrInvalidPayload         = errors.New("invalid callback payload")
	ErrSignatureRequired      = errors.New("signature required")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrWebhookNotFound        = errors.New("webhook delivery not found")

	// Transaction errors
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrDuplicateOrderReference = errors.New("duplicate order reference")
	ErrInvalidOrderReference   = errors.New("order reference must be alphanumeric and non-blank")
	ErrInvalidTransactionType  = errors.New("invalid transaction type")

	// Gateway errors
	ErrTokenUnavailable   = errors.New("failed to authenticate with gateway")
	ErrInvalidEnvironment = errors.New("invalid gateway environment")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
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
