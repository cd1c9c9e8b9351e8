package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission
	// for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested booking does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrDuplicateExternalID is returned when a create carries an external id
	// that is already stored. Callers should treat it as
	// success-already-happened rather than retry.
	ErrDuplicateExternalID = errors.New("application: duplicate external id")
)

// ConflictError reports that a candidate slot overlaps an existing booking.
type ConflictError struct {
	WithBookingID string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("booking conflicts with %s", e.WithBookingID)
}

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
