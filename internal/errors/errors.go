package errors

import (
	"errors"
	"fmt"
)

// Common error types for the AgriMandi client
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrLoginInFlight      = errors.New("login already in progress")
	ErrSessionInvalidated = errors.New("session invalidated")

	// Token errors
	ErrTokenExpired = errors.New("token expired")
	ErrTokenAbsent  = errors.New("no stored token")

	// Transport errors
	ErrUnreachable = errors.New("backend unreachable")

	// Storage errors
	ErrStorageUnavailable = errors.New("credential storage unavailable")

	// Store errors
	ErrStaleFetch      = errors.New("fetch superseded by a later request")
	ErrPendingNotFound = errors.New("pending mutation not found")

	// Registration errors
	ErrStepIncomplete = errors.New("registration step incomplete")
	ErrWizardFinished = errors.New("registration already submitted")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
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
