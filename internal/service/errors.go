package service

import (
	"errors"
	"fmt"
)

// ErrInvalidState signals an operation against a terminally resolved record,
// e.g. retrying a parse failure that staff already resolved. Unlike a plain
// conflict, the record will never become eligible again.
var ErrInvalidState = errors.New("record is in a terminal state")

// ValidationError rejects malformed input before any mutation happens.
// Safe to retry after correcting the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
