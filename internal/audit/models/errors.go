package models

import (
	"errors"
	"fmt"
)

// ErrChainContinuity reports that another writer committed a new tip between
// the tip read and the append. It is retryable: re-read the tip and rebuild
// the event. It must never be resolved by overwriting or forking the chain.
var ErrChainContinuity = errors.New("chain continuity conflict")

// ErrUnsupportedPayloadType reports a payload value outside the closed
// canonicalizable domain (e.g. a float). Raised before any hashing happens.
var ErrUnsupportedPayloadType = errors.New("unsupported payload type")

// ValidationError rejects a malformed submission before any side effects.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a submission validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceError wraps a failed primary-store commit. The submission did
// not happen and the tenant's tip is unchanged.
type PersistenceError struct {
	TenantID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("primary store commit failed for tenant %s: %v", e.TenantID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ArchivalError wraps a failed archival mirror. Non-fatal: recorded and
// retried independently of the committed chain.
type ArchivalError struct {
	EventID string
	Err     error
}

func (e *ArchivalError) Error() string {
	return fmt.Sprintf("archive write failed for event %s: %v", e.EventID, e.Err)
}

func (e *ArchivalError) Unwrap() error { return e.Err }

// DeliveryError wraps a failed SIEM delivery. Non-fatal.
type DeliveryError struct {
	EventID string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("siem delivery failed for event %s: %v", e.EventID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
