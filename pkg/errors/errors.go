// Package errors provides common domain error types for the nexa server.
//
// This package defines sentinel errors for domain conditions like "not found"
// or "invalid transition" that are shared across all packages. Using typed
// errors enables consistent handling with errors.Is() checks, and the webhook
// layer maps them onto HTTP status codes via the outcome registry in codes.go.
//
// Usage:
//
//	import nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
//
//	// Return a domain error
//	return nil, nxerrors.ErrNotFound
//
//	// Check for domain errors
//	if nxerrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found, or exists
	// in a status that forbids the requested lifecycle transition.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g. deleting an
	// agent that meetings still reference).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates invalid input or a malformed payload.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized indicates the request lacks valid authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the authenticated user lacks permission.
	ErrForbidden = errors.New("forbidden")

	// ErrDependency indicates an external collaborator (call platform,
	// AI connector) failed while handling the request.
	ErrDependency = errors.New("dependency failure")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether any error in err's chain is ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnauthorized reports whether any error in err's chain is ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden reports whether any error in err's chain is ErrForbidden.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsDependency reports whether any error in err's chain is ErrDependency.
func IsDependency(err error) bool {
	return errors.Is(err, ErrDependency)
}
