package source

import "errors"

// AuthError marks a list failure caused by a rejected or unusable credential.
// Providers wrap such failures in it so callers can distinguish a credential
// problem, which is fatal for the whole run, from a transient per-account
// listing failure.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "source credential rejected: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err wraps a credential failure.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
