package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrBusy                 = errors.New("another request is still running")
	ErrNoResult             = errors.New("no result to work from yet")
	ErrNoLastAction         = errors.New("nothing to retry")
	ErrConfirmationRequired = errors.New("explicit confirmation required")
	ErrInvalidTransition    = errors.New("invalid workflow transition")
)

// ValidationError rejects user input before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// EncodingError reports that an accepted input could not be read or encoded.
type EncodingError struct {
	Filename string
	Err      error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("could not read %q: %v", e.Filename, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// GatewayError wraps any transport, status or decoding failure of an AI call.
// Message is always safe to show to the user.
type GatewayError struct {
	Recipe  string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Recipe, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Recipe, e.Message, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PersistenceError reports a failed durable write. In-memory state is kept.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CapabilityUnavailableError reports that an optional runtime capability is missing.
type CapabilityUnavailableError struct {
	Capability string
}

func (e *CapabilityUnavailableError) Error() string {
	return fmt.Sprintf("%s is not available in this environment", e.Capability)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsGateway reports whether err is (or wraps) a GatewayError.
func IsGateway(err error) bool {
	var g *GatewayError
	return errors.As(err, &g)
}
