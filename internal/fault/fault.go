// internal/fault/fault.go
package fault

import (
	"errors"
	"net/http"
)

// Sentinel errors shared across the marketplace engine. Services wrap these
// with call-site context; handlers map them to HTTP status codes.
var (
	// ErrInsufficientStock is an expected business outcome: the requested
	// quantity exceeds what is currently available.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidTransition means the entity is not in the state the
	// operation requires. It is a usage error, never retried internally.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrForbidden means the caller is not authorized for the operation
	// (wrong role, or not the owner of the resource).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired means the target sale or offer is past its expiry.
	ErrExpired = errors.New("expired")

	// ErrAlreadyFinalized means the entity (or an entity linked to it)
	// reached a terminal state that forbids the operation.
	ErrAlreadyFinalized = errors.New("already finalized")

	// ErrThrottled means the caller exceeded the purchase rate limit.
	ErrThrottled = errors.New("rate limit exceeded")
)

// HTTPStatus maps a domain error to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrExpired):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyFinalized):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrThrottled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
