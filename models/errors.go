package models

import "errors"

var (
	ErrInvalidReading = errors.New("invalid reading")
	ErrAlertNotFound  = errors.New("alert not found")
)

// ValidationError carries a client-facing message and matches ErrInvalidReading.
type ValidationError struct {
	Msg string
}

func newValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidReading }
