package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("position not found")
	ErrAlreadyClosed    = errors.New("position already closed")
	ErrInvalidQuote     = errors.New("invalid quote")
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// ValidationError reports which input field was rejected. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
