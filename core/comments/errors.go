package comments

import (
	"errors"

	"reportdesk/core/incidents"
)

// Incident scope errors pass through unchanged so callers map both packages
// with the same errors.Is checks.
var (
	ErrNotFound     = incidents.ErrNotFound
	ErrForbidden    = incidents.ErrForbidden
	ErrInvalidInput = incidents.ErrInvalidInput

	ErrCommentNotFound = errors.New("comment not found")
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
