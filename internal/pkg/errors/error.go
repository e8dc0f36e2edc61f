package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict: resource already exists")
	ErrInternal       = errors.New("internal server error")
	ErrTokenRevoked   = errors.New("token has been revoked")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrBadRequest     = errors.New("bad request")
)

// BusinessRuleViolation is returned when a request is well formed but breaks a domain rule.
type BusinessRuleViolation struct {
	Rule string
}

func (e *BusinessRuleViolation) Error() string {
	return fmt.Sprintf("business rule violated: %s", e.Rule)
}

// EntityNotFound reports a missing entity by name and identifier.
type EntityNotFound struct {
	Entity string
	ID     string
}

func (e *EntityNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *EntityNotFound) Is(target error) bool {
	return target == ErrNotFound
}

type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrUnauthorized
}

type AuthorizationError struct {
	Permission string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("access denied, requires %s", e.Permission)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrForbidden
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported so callers need a single import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
