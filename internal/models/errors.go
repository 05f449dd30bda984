package models

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed input. It is rejected before any
// persistence happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// ErrConcurrencyConflict signals that a claim transaction lost against a
// concurrent modification of the same group document. The claimer retries a
// bounded number of times against fresh state.
var ErrConcurrencyConflict = errors.New("group state modified concurrently")

// ErrGroupNotFound is returned by reads of a group that was never imported
// or scheduled.
var ErrGroupNotFound = errors.New("group state not found")
