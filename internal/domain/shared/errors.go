// Package shared contains common domain types and errors that are used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrCorruptRecord = errors.New("corrupt record")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrConstraint      = errors.New("constraint violation")

	// State errors
	ErrInvalidState   = errors.New("invalid state")
	ErrAlreadyDecided = errors.New("already decided")

	// Storage errors
	ErrStorage = errors.New("storage failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrSideEffectFailed   = errors.New("external side effect failed")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "solve", "user", "rank"
	Op      string // Operation that failed, e.g., "Create", "Decide"
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

// Solve domain errors
var (
	ErrSolveNotFound       = NewDomainError("solve", "Find", ErrNotFound, "solve not found")
	ErrSolveAlreadyDecided = NewDomainError("solve", "Decide", ErrAlreadyDecided, "solve already decided")
	ErrDuplicateSolve      = NewDomainError("solve", "Create", ErrConstraint, "solve already recorded for this challenge")
	ErrUnknownStatus       = NewDomainError("solve", "Load", ErrCorruptRecord, "unknown approval status value")
)

// Challenge domain errors
var (
	ErrChallengeNotFound   = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrDuplicateChallenge  = NewDomainError("challenge", "Create", ErrConstraint, "challenge already exists in this competition")
	ErrUnknownCategory     = NewDomainError("challenge", "Load", ErrCorruptRecord, "unknown category value")
	ErrCompetitionNotFound = NewDomainError("challenge", "Create", ErrConstraint, "competition does not exist")
)

// User domain errors
var (
	ErrUserNotFound     = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrEmptyCreditBatch = NewDomainError("user", "Credit", ErrInvalidInput, "credit batch is empty")
)

// Verification domain errors
var (
	ErrTokenInvalid  = NewDomainError("verify", "Redeem", ErrInvalidInput, "verification token is invalid")
	ErrTokenTampered = NewDomainError("verify", "Redeem", ErrInvalidInput, "verification token failed authentication")
)

// External collaborator errors
var (
	ErrRoleSyncFailed     = NewDomainError("discord", "SyncRole", ErrSideEffectFailed, "role synchronization failed")
	ErrNotificationFailed = NewDomainError("discord", "Notify", ErrSideEffectFailed, "failed to deliver notification")
	ErrDiscordUnavailable = NewDomainError("discord", "Request", ErrServiceUnavailable, "Discord API is unavailable")
	ErrDiscordRateLimited = NewDomainError("discord", "Request", ErrRateLimited, "Discord API rate limit exceeded")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConstraintViolation checks if the error is a constraint violation.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraint) || errors.Is(err, ErrAlreadyExists)
}

// IsAlreadyDecided checks if the error reports a terminal approval status.
func IsAlreadyDecided(err error) bool {
	return errors.Is(err, ErrAlreadyDecided)
}

// IsCorruptRecord checks if the error reports an undecodable stored value.
func IsCorruptRecord(err error) bool {
	return errors.Is(err, ErrCorruptRecord)
}

// IsStorageFailure checks if the error comes from the persistence layer.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsSideEffectFailure checks if the error comes from an external side effect
// that ran after a committed decision.
func IsSideEffectFailure(err error) bool {
	return errors.Is(err, ErrSideEffectFailed)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
