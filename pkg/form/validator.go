package form

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Validator checks one field value against the rest of the form.
type Validator func(field, value string, values map[string]string) error

// ValidateRequired fails when the trimmed value is empty.
func ValidateRequired(value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Message: "This field is required", Kind: ErrRequiredField}
	}
	return nil
}

// ValidateEmail fails when a non-empty value does not look like an address.
// Empty values pass; pair with ValidateRequired.
func ValidateEmail(value string) error {
	if value == "" || emailPattern.MatchString(value) {
		return nil
	}
	return &FieldError{Message: "Email address is invalid", Kind: ErrInvalidFormat}
}

// ValidateMatch fails when value differs from other.
func ValidateMatch(value, other string) error {
	if value != other {
		return &FieldError{Message: "Values do not match", Kind: ErrMismatch}
	}
	return nil
}

// Required builds a Validator around ValidateRequired with a custom message.
func Required(message string) Validator {
	return func(field, value string, _ map[string]string) error {
		return withField(ValidateRequired(value), field, message)
	}
}

// Email builds a Validator around ValidateEmail with a custom message.
func Email(message string) Validator {
	return func(field, value string, _ map[string]string) error {
		return withField(ValidateEmail(value), field, message)
	}
}

// MatchField requires the value to equal the value of another field.
func MatchField(other, message string) Validator {
	return func(field, value string, values map[string]string) error {
		return withField(ValidateMatch(value, values[other]), field, message)
	}
}

func withField(err error, field, message string) error {
	if err == nil {
		return nil
	}
	fe, ok := err.(*FieldError)
	if !ok {
		return err
	}
	out := *fe
	out.Field = field
	if message != "" {
		out.Message = message
	}
	return &out
}
