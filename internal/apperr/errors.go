// Package apperr defines the error kinds shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrVideoLookupFailed  = errors.New("video lookup failed")
	ErrRemoteWriteFailed  = errors.New("write failed")
	ErrValidationFailed   = errors.New("validation failed")

	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("access denied")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrMuted             = errors.New("user is muted")
	ErrBanned            = errors.New("user is banned")
	ErrSlowMode          = errors.New("slow mode is enabled")
	ErrQuizClosed        = errors.New("quiz is not accepting answers")
)

// Validation returns an ErrValidationFailed with a readable reason
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

// WriteFailed marks a storage write failure for op, keeping the cause
func WriteFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	// kinds the store already decided on pass through unchanged
	for _, known := range []error{ErrNotFound, ErrConflict, ErrDuplicateUsername, ErrInsufficientFunds, ErrQuizClosed} {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteWriteFailed, err)
}
