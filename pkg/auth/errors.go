package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input that failed validation. Use ValidationError
	// to carry the user-facing message.
	ErrValidation = errors.New("validation failed")

	// ErrEmailTaken is returned when the email already belongs to an identity
	ErrEmailTaken = errors.New("user already exists")

	// ErrInvalidCredentials covers both an unknown email and a wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrIncorrectPassword is returned when the current password does not match
	// during a password change
	ErrIncorrectPassword = errors.New("password is incorrect")

	// ErrUserNotFound is returned when no identity matches the lookup
	ErrUserNotFound = errors.New("user not found")
)

// Token and identity causes. Callers at the HTTP boundary collapse these
// into one unauthorized outcome; the distinction only reaches logs and audit.
var (
	ErrNoToken         = errors.New("no token supplied")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrTokenExpired    = errors.New("token expired")
	ErrAccountInactive = errors.New("account is deactivated")
)

// ValidationError carries a user-facing validation message
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError
func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsUnauthenticated reports whether err is one of the causes that end in
// an unauthorized response
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrNoToken) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAccountInactive)
}

// Cause returns a short label for an authentication failure, used as a log
// field and metric label
func Cause(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrTokenExpired):
		return "expired_token"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrAccountInactive):
		return "inactive_account"
	default:
		return "error"
	}
}
