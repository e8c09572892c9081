package appconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField marks a mandatory option that was not supplied.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidOptions marks options that could not be interpreted.
	ErrInvalidOptions = errors.New("invalid options")
)

// ValidationError reports a process specification rejected before any
// remote call was attempted.
type ValidationError struct {
	// Field is the offending option, if known.
	Field string
	// Err is ErrMissingField, ErrInvalidOptions or a resolver failure.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid app config: %v", e.Err)
	}
	return fmt.Sprintf("invalid app config: %q: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
