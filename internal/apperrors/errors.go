package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrInternal is returned when an unexpected failure is hidden from the caller.
var ErrInternal = errors.New("internal error")

// ErrInsufficientFunds is a business rejection: the available balance cannot cover the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrNoSuchReservation is returned by release when no active reservation matches the correlation id.
var ErrNoSuchReservation = errors.New("no such reservation")

// ErrAccountInactive is returned when the account status does not allow the operation.
var ErrAccountInactive = errors.New("account is not in a state that allows this operation")

// ErrConcurrentModification means the account version changed between read and commit.
var ErrConcurrentModification = errors.New("concurrent modification")

// ErrTransient marks transport level failures (timeouts, refused connections, 5xx).
var ErrTransient = errors.New("transient network error")

// ErrOutcomeUnknown is wrapped together with ErrTransient once retries are exhausted:
// the remote side may or may not have applied the call.
var ErrOutcomeUnknown = errors.New("operation outcome unknown")

// ErrIdempotencyMismatch is returned when an idempotency key is reused with a different payload.
var ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// AppError carries an HTTP-ish code next to the wrapped cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError wraps err with a code and message.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewNotFoundError builds an AppError that matches ErrNotFound with errors.Is.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message, Err: ErrNotFound}
}

// Kind is the closed set of error categories the transfer orchestrator dispatches on.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientFunds
	KindNoSuchReservation
	KindAccountInactive
	KindConcurrentModification
	KindTransient
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case KindNoSuchReservation:
		return "NO_SUCH_RESERVATION"
	case KindAccountInactive:
		return "ACCOUNT_INACTIVE"
	case KindConcurrentModification:
		return "CONCURRENT_MODIFICATION"
	case KindTransient:
		return "TRANSIENT_NETWORK_ERROR"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}

// Classify maps an error chain onto a Kind. A context deadline counts as transient,
// a cancelled context does not.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrNoSuchReservation):
		return KindNoSuchReservation
	case errors.Is(err, ErrAccountInactive):
		return KindAccountInactive
	case errors.Is(err, ErrConcurrentModification):
		return KindConcurrentModification
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrIdempotencyMismatch), errors.Is(err, ErrInvalidTransition):
		return KindConflict
	default:
		return KindInternal
	}
}

// IsBusinessRejection reports whether err is a definitive answer from the ledger
// (the operation was not applied and retrying will not change that).
func IsBusinessRejection(err error) bool {
	switch Classify(err) {
	case KindValidation, KindNotFound, KindInsufficientFunds, KindNoSuchReservation, KindAccountInactive:
		return true
	default:
		return false
	}
}

// KindFromString is the inverse of Kind.String, used to decode remote error bodies.
func KindFromString(s string) Kind {
	for _, k := range []Kind{KindValidation, KindNotFound, KindInsufficientFunds, KindNoSuchReservation,
		KindAccountInactive, KindConcurrentModification, KindTransient, KindConflict} {
		if k.String() == s {
			return k
		}
	}
	return KindInternal
}

// SentinelFor returns the sentinel error that represents a Kind.
func SentinelFor(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindInsufficientFunds:
		return ErrInsufficientFunds
	case KindNoSuchReservation:
		return ErrNoSuchReservation
	case KindAccountInactive:
		return ErrAccountInactive
	case KindConcurrentModification:
		return ErrConcurrentModification
	case KindTransient:
		return ErrTransient
	case KindConflict:
		return ErrDuplicate
	default:
		return ErrInternal
	}
}
