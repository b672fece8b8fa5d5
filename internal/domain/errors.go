package domain

import "errors"

// Error kinds. Every rule violation unwraps to exactly one of these.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")
)

// RuleError is a business-rule violation of a given kind.
type RuleError struct {
	Kind    error
	Message string
}

func (e *RuleError) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

// NotFound returns a RuleError of kind ErrNotFound.
func NotFound(msg string) error { return &RuleError{Kind: ErrNotFound, Message: msg} }

// Forbidden returns a RuleError of kind ErrForbidden.
func Forbidden(msg string) error { return &RuleError{Kind: ErrForbidden, Message: msg} }

// Conflict returns a RuleError of kind ErrConflict.
func Conflict(msg string) error { return &RuleError{Kind: ErrConflict, Message: msg} }

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
