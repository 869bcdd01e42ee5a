package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// FileValidationError is fatal: the document can never be processed and no
// recognition tier is attempted.
type FileValidationError struct {
	Name   string
	Reason string
}

func (e *FileValidationError) Error() string {
	return fmt.Sprintf("file validation failed for %q: %s", e.Name, e.Reason)
}

// OCRError is fatal: every recognition tier was attempted and none produced
// usable text. It records why each tier was rejected.
type OCRError struct {
	Tier1Reason string
	Tier2Reason string
}

func (e *OCRError) Error() string {
	return fmt.Sprintf("all recognition tiers failed: tier1: %s; tier2: %s", e.Tier1Reason, e.Tier2Reason)
}

// ExtractionError reports a model call or response failure during field
// extraction. The pipeline treats it as fatal for the current job.
type ExtractionError struct {
	Op    string
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction %s failed: %v", e.Op, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// WebhookDeliveryError is non-fatal: the extraction result stands even when
// the completion notification could not be delivered.
type WebhookDeliveryError struct {
	URL      string
	Attempts uint
	Cause    error
}

func (e *WebhookDeliveryError) Error() string {
	return fmt.Sprintf("webhook delivery to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Cause)
}

func (e *WebhookDeliveryError) Unwrap() error {
	return e.Cause
}
