// Package repository defines the storage contracts of the reservation
// service and the error kinds shared by every layer.  The kind sentinels let
// handlers pick a status code with errors.Is while the wrapped reason is
// shown to the user verbatim.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a ticket, seat or customer does not exist.
// Handlers translate it into 404.
var ErrNotFound = errors.New("not found")

// ErrConflict signals that the stored state no longer allows the operation,
// e.g. a seat reserved by another ticket.  Handlers translate it into 409.
var ErrConflict = errors.New("conflict")

// ErrBadRequest marks malformed or ineligible input.  Handlers translate it
// into 400.
var ErrBadRequest = errors.New("bad request")

// ErrUnauthorized is returned when credentials do not match.  401.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when the caller may not touch a resource.  403.
var ErrForbidden = errors.New("forbidden")

// ReasonError carries a user facing reason and unwraps to its kind.
type ReasonError struct {
	Kind   error
	Reason string
}

func (e *ReasonError) Error() string { return e.Reason }
func (e *ReasonError) Unwrap() error { return e.Kind }

// NotFoundf returns an ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return &ReasonError{Kind: ErrNotFound, Reason: fmt.Sprintf(format, args...)}
}

// Conflictf returns an ErrConflict with a formatted reason.
func Conflictf(format string, args ...any) error {
	return &ReasonError{Kind: ErrConflict, Reason: fmt.Sprintf(format, args...)}
}

// BadRequestf returns an ErrBadRequest with a formatted reason.
func BadRequestf(format string, args ...any) error {
	return &ReasonError{Kind: ErrBadRequest, Reason: fmt.Sprintf(format, args...)}
}

// Unauthorizedf returns an ErrUnauthorized with a formatted reason.
func Unauthorizedf(format string, args ...any) error {
	return &ReasonError{Kind: ErrUnauthorized, Reason: fmt.Sprintf(format, args...)}
}

// Reason returns the user facing message of err, or fallback when err does
// not carry one.
func Reason(err error, fallback string) string {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Reason
	}
	return fallback
}

// errRetry is returned inside RunAtomic when the transaction lost a race and
// must be replayed from scratch.
var errRetry = errors.New("transaction contention")

// maxAttempts bounds transparent transaction retries.
const maxAttempts = 5
