// Package shared contains common domain types, errors and events
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// ErrValidation - malformed input, rejected before any I/O.
	ErrValidation = errors.New("validation error")

	// ErrNotFound - referenced user or idea record is absent.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists - a unique record already exists.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrTransactionContention - transient store-level conflict; safe to retry.
	ErrTransactionContention = errors.New("transaction contention")

	// ErrConfiguration - required transactional backend or credentials unavailable.
	ErrConfiguration = errors.New("configuration error")

	// ErrConsistency - a derived counter diverged from its source records.
	ErrConsistency = errors.New("consistency error")

	// ErrTimeout - the store did not answer in time; treat as not applied.
	ErrTimeout = errors.New("operation timeout")

	// ErrUnauthorized - caller identity missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progression", "quota", "roadmap"
	Op      string // Operation that failed, e.g., "Toggle", "CheckAndIncrement"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ValidationError builds a validation failure for a single field.
func ValidationError(domain, op, field, reason string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf("%s: %s", field, reason))
}

// Progression domain errors
var (
	ErrProfileNotFound = NewDomainError("progression", "LoadProfile", ErrNotFound, "user profile not found")
	ErrInvalidScore    = NewDomainError("progression", "Validate", ErrValidation, "score must be between 0 and 100")
	ErrInvalidDuration = NewDomainError("progression", "Validate", ErrValidation, "duration must not be negative")
	ErrMissingUserID   = NewDomainError("progression", "Validate", ErrValidation, "user id is required")
	ErrMissingSession  = NewDomainError("progression", "Validate", ErrValidation, "session id is required")
)

// Quota domain errors
var (
	ErrQuotaStoreUnavailable = NewDomainError("quota", "Init", ErrConfiguration, "quota store is not configured")
)

// Roadmap domain errors
var (
	ErrIdeaNotFound = NewDomainError("roadmap", "Find", ErrNotFound, "idea not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsContention checks if the error is a transient store conflict.
func IsContention(err error) bool {
	return errors.Is(err, ErrTransactionContention)
}

// IsConfiguration checks if the error reports a missing backend.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsConsistency checks if the error reports a diverged derived counter.
func IsConsistency(err error) bool {
	return errors.Is(err, ErrConsistency)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionContention) ||
		errors.Is(err, ErrTimeout)
}
