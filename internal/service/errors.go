package service

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoNavigation is returned when a login form is opened from a signup form that has
	// not completed yet.
	ErrNoNavigation = errors.New("signup form has not completed")

	ErrInvalidPrefillSource = errors.New("only login forms can be opened from a signup form")
	ErrInvalidVariant       = errors.New("unknown form variant")
	ErrInvalidKind          = errors.New("unknown detection kind")
)
