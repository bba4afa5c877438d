// Package repository defines the credential store and the error values it
// reports. These sentinel values let handlers distinguish failure classes
// with errors.Is without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"
)

// ErrValidation is returned when required fields are missing or hold a
// value outside their allowed set. Handlers translate it into 400.
var ErrValidation = errors.New("validation failed")

// ErrConflict signals a uniqueness violation. Handlers translate it into
// 409.
var ErrConflict = errors.New("conflict")

// ErrUsernameTaken and ErrPhoneTaken are the two uniqueness violations a
// user document can hit.
var (
	ErrUsernameTaken = fmt.Errorf("%w: username already in use", ErrConflict)
	ErrPhoneTaken    = fmt.Errorf("%w: phone number already in use", ErrConflict)
)

// ErrNotFound is returned by update operations when the target id does
// not exist. Lookups report absence through their found flag instead.
var ErrNotFound = errors.New("not found")

// ErrSamePassword is returned when a password change submits the current
// password.
var ErrSamePassword = errors.New("new password matches the current one")

// ErrStoreUnavailable wraps driver failures such as timeouts or lost
// connections. It is retryable and reported to clients as 500.
var ErrStoreUnavailable = errors.New("store unavailable")

func missingField(name string) error {
	return fmt.Errorf("%w: %s is required", ErrValidation, name)
}

func invalidField(name string) error {
	return fmt.Errorf("%w: %s is invalid", ErrValidation, name)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
