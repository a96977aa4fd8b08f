package errors

import (
	"errors"
	"fmt"
)

// Common error kinds for the credential broker
var (
	// Bearer token errors
	ErrAuthMissing        = errors.New("missing bearer token")
	ErrAuthExpired        = errors.New("bearer token expired")
	ErrAuthInvalid        = errors.New("invalid bearer token")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Pairing errors
	ErrPairingExpired  = errors.New("pairing token expired")
	ErrPairingNotFound = errors.New("pairing token not found")

	// Grant errors
	ErrGrantAbsent        = errors.New("no oauth grant")
	ErrGrantRefreshFailed = errors.New("oauth grant refresh failed")

	// Identity provider errors
	ErrProviderRejected    = errors.New("identity provider rejected request")
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// Storage errors
	ErrPersistenceFailure = errors.New("persistence failure")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrRateLimited    = errors.New("too many requests")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join is errors.Join, re-exported so callers need a single errors import.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
