package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicateExternalID is returned when a create carries an external
	// identifier that is already stored.
	ErrDuplicateExternalID = errors.New("persistence: duplicate external id")
)
