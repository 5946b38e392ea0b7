package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSignatureDeclined is returned when the signer refuses to sign a
	// prepared transaction. Nothing was submitted; the action is safe to
	// retry.
	ErrSignatureDeclined = errors.New("signature declined")

	// ErrLockExists is returned when a create action targets an asset class
	// that already has a live lock for the party.
	ErrLockExists = errors.New("lock already exists for this asset class")

	// ErrLockNotFound is returned when a withdraw or fund action targets an
	// asset class with no live lock.
	ErrLockNotFound = errors.New("no lock exists for this asset class")

	// ErrActionInFlight is returned when an action of the same kind is
	// already running. The engine never pipelines conflicting actions.
	ErrActionInFlight = errors.New("another action of this kind is in flight")
)

// ErrorCategory classifies an action failure by where it occurred, which
// determines whether funds may have moved and whether a retry is safe.
type ErrorCategory string

const (
	// CategoryValidation: rejected before any network traffic. Safe to retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryResolution: account roles could not be bound. Safe to retry.
	CategoryResolution ErrorCategory = "resolution"

	// CategoryDeclined: the signer refused. Nothing was submitted.
	CategoryDeclined ErrorCategory = "declined"

	// CategoryInFlight: a conflicting action is already running.
	CategoryInFlight ErrorCategory = "in_flight"

	// CategoryLockExists: the pre-submission existence check failed.
	CategoryLockExists ErrorCategory = "lock_exists"

	// CategoryNetwork: an RPC interaction failed. The transaction may or
	// may not have landed; reconcile before retrying.
	CategoryNetwork ErrorCategory = "network"

	// CategoryProgram: the transaction executed and the program rejected it.
	CategoryProgram ErrorCategory = "program"

	// CategoryExpired: the transaction's blockhash aged out before the
	// transaction was observed. It will never execute.
	CategoryExpired ErrorCategory = "expired"

	// CategoryCancelled: the caller's context ended while the outcome was
	// still unknown.
	CategoryCancelled ErrorCategory = "cancelled"
)

// ActionError is a categorized action failure.
type ActionError struct {
	Category ErrorCategory
	Err      error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func actionError(category ErrorCategory, err error) *ActionError {
	return &ActionError{Category: category, Err: err}
}

func actionErrorf(category ErrorCategory, format string, args ...interface{}) *ActionError {
	return &ActionError{Category: category, Err: errors.Errorf(format, args...)}
}
