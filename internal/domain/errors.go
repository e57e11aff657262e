package domain

import (
	"errors"
	"fmt"
)

// Ledger error kinds. Every error returned by the engine wraps exactly one of
// these, so callers branch with errors.Is.
var (
	ErrNotFound            = errors.New("ledger: not found")
	ErrForbidden           = errors.New("ledger: forbidden")
	ErrInvalidState        = errors.New("ledger: invalid state")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrValidation          = errors.New("ledger: validation failed")

	// ErrConflict means the store aborted the atomic group because of a
	// concurrent update. Nothing was written.
	ErrConflict = errors.New("ledger: concurrent update conflict")

	ErrIdempotencyMismatch = errors.New("ledger: idempotency key reused with a different payload")

	// ErrUnavailable is returned without touching the store while the
	// circuit breaker is open.
	ErrUnavailable = errors.New("ledger: store unavailable")
)

// Errorf wraps kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool    { return errors.Is(err, ErrForbidden) }
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// IsBusinessError reports whether err is a rule rejection rather than an
// infrastructure failure. Business errors say nothing about store health.
func IsBusinessError(err error) bool {
	for _, kind := range []error{
		ErrNotFound, ErrForbidden, ErrInvalidState, ErrInsufficientBalance,
		ErrValidation, ErrIdempotencyMismatch, ErrConflict,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// ClassifyError returns a stable label for err, used in metrics.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrIdempotencyMismatch):
		return "idempotency_mismatch"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
