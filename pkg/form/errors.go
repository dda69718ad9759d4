package form

import (
	"errors"
	"fmt"
)

var (
	ErrRequiredField = errors.New("required field")
	ErrInvalidFormat = errors.New("invalid format")
	ErrMismatch      = errors.New("values do not match")

	// ErrRemoteSubmit marks a failure reported by the Submitter, as opposed to local validation.
	ErrRemoteSubmit = errors.New("remote submit failed")

	ErrSubmitInProgress = errors.New("submit in progress")
	ErrUnknownField     = errors.New("unknown field")
	ErrClosed           = errors.New("form closed")
)

// FieldError is a validation failure scoped to a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Kind    error  `json:"-"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

// Code is a stable identifier for the error kind, suitable for clients.
func (e *FieldError) Code() string {
	switch {
	case errors.Is(e.Kind, ErrRequiredField):
		return "required"
	case errors.Is(e.Kind, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(e.Kind, ErrMismatch):
		return "mismatch"
	default:
		return "invalid"
	}
}

// SubmitError wraps the Submitter failure together with the message shown for the form.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *SubmitError) Unwrap() []error {
	return []error{ErrRemoteSubmit, e.Err}
}
