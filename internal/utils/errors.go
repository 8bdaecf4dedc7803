package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError represents an API error
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Endpoint   string `json:"endpoint"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (%d) from %s", e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("API error (%d) from %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Endpoint:   endpoint,
	}
}

// IsAuthError checks if the error is an authentication error
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsForbiddenError checks if the error is a forbidden error
func IsForbiddenError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// Stage names a pipeline stage
type Stage string

const (
	StageConfig   Stage = "config"
	StageAuth     Stage = "authenticate"
	StageFetch    Stage = "fetch"
	StageDelivery Stage = "delivery"
)

// StageError ties a failure to the pipeline stage that produced it
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err for stage. A nil err stays nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, or "" when err carries none
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// DeliveryKind separates network failures from mail-transport failures
type DeliveryKind string

const (
	// DeliveryNetwork covers dial failures, timeouts and broken connections.
	DeliveryNetwork DeliveryKind = "network"
	// DeliveryTransport covers SMTP replies, authentication and TLS negotiation.
	DeliveryTransport DeliveryKind = "transport"
)

// DeliveryError is returned by the mailer
type DeliveryError struct {
	Kind DeliveryKind
	Step string
	Err  error
}

// Error implements the error interface
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("smtp %s error during %s: %v", e.Kind, e.Step, e.Err)
}

// Unwrap returns the underlying error
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// DeliveryKindOf returns the delivery kind of err, or "" if err is not a DeliveryError
func DeliveryKindOf(err error) DeliveryKind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error `json:"errors"`
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d errors occurred: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the multi-error
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrorOrNil returns nil when nothing was collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

// NewMultiError creates a new multi-error
func NewMultiError() *MultiError {
	return &MultiError{
		Errors: make([]error, 0),
	}
}
