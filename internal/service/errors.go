package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when the deployment lacks a gateway key or price identifier.
var ErrNotConfigured = errors.New("checkout is not configured")

var errValidation = errors.New("checkout: validation error")

// ValidationError reports client input that is missing or malformed.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return errValidation
}

func newValidationError(format string, args ...interface{}) error {
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if message == "" {
		message = "invalid input"
	}
	return &ValidationError{Message: message}
}

func missingFieldsError(fields []string) error {
	return &ValidationError{
		Message: "missing required fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

// IsValidationError reports whether the provided error indicates invalid user input.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, errValidation)
}
