package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrInactiveAccount       = errors.New("account is inactive")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrDuplicateTransaction  = errors.New("duplicate transaction")
	ErrIdempotencyMismatch   = errors.New("key reuse with mismatched payload")
	ErrIdempotencyInProgress = errors.New("request in progress")
	ErrConflict              = errors.New("concurrent modification")
	ErrUnauthenticated       = errors.New("authentication required")
	ErrRateLimited           = errors.New("rate limit exceeded")
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindStateConflict
	KindInsufficientBalance
	KindRateLimited
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unexpected"
	}
}

// ValidationError reports caller-fixable input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// Error attaches a caller-facing message to one of the sentinels above.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func Errorf(sentinel error, format string, args ...any) error {
	return &Error{Err: sentinel, Message: fmt.Sprintf(format, args...)}
}

// KindOf maps err onto the taxonomy. Unknown errors are KindUnexpected.
func KindOf(err error) Kind {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, ErrInactiveAccount),
		errors.Is(err, ErrDuplicateTransaction),
		errors.Is(err, ErrIdempotencyMismatch),
		errors.Is(err, ErrIdempotencyInProgress),
		errors.Is(err, ErrConflict):
		return KindStateConflict
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	default:
		return KindUnexpected
	}
}

var publicMessages = []struct {
	err error
	msg string
}{
	{ErrAccountNotFound, "Account not found"},
	{ErrInactiveAccount, "Account is inactive"},
	{ErrInsufficientBalance, "Insufficient balance"},
	{ErrDuplicateTransaction, "Duplicate transaction detected"},
	{ErrIdempotencyMismatch, "Idempotency key reused with a different request"},
	{ErrIdempotencyInProgress, "Request with this idempotency key is already in progress"},
	{ErrConflict, "Transfer could not be completed due to concurrent updates, please retry"},
	{ErrUnauthenticated, "Authentication required"},
	{ErrRateLimited, "Rate limit exceeded. Please try again later."},
}

// Message returns the text safe to show a caller. Unexpected errors never leak.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	for _, m := range publicMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "An unexpected error occurred"
}
