package domain

import "fmt"

// ErrorKind is the closed taxonomy of errors the core ever returns across
// its boundary. Anything else gets wrapped as KindInternal.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindCurrencyMismatch   ErrorKind = "currency_mismatch"
	KindAmountExceedsLimit ErrorKind = "amount_exceeds_limit"
	KindBalanceExceedsLimit ErrorKind = "balance_exceeds_limit"
	KindInvalidTransfer    ErrorKind = "invalid_transfer"
	KindInvalidState       ErrorKind = "invalid_state"
	KindRateLimitExceeded  ErrorKind = "rate_limit_exceeded"
	KindInternal           ErrorKind = "internal"
)

// Error is the single sum-type error the money engine and store boundary
// ever return. Kind is immutable once constructed; Details is a structured
// bag so callers can recover context (requested/available amounts, limits,
// reset timestamps) without parsing a message string.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	cause   error
}

// NewError constructs an Error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a KindInternal error wrapping cause.
func Wrap(cause error, message string) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// WithDetail returns e with a detail key set, for chaining at construction.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 4)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	var de *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			de = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return de != nil && de.Kind == kind
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// anything not already part of the taxonomy.
func KindOf(err error) ErrorKind {
	var de *Error
	if e, ok := err.(*Error); ok {
		de = e
	}
	if de == nil {
		return KindInternal
	}
	return de.Kind
}

// Convenience constructors matching the most common call sites.

func NotFound(walletID string) *Error {
	return NewError(KindNotFound, "wallet not found").WithDetail("wallet_id", walletID)
}

func Forbidden(walletID, userID string) *Error {
	return NewError(KindForbidden, "caller does not own this wallet").
		WithDetail("wallet_id", walletID).
		WithDetail("user_id", userID)
}

func InsufficientFunds(requested, available Money) *Error {
	return NewError(KindInsufficientFunds, "insufficient funds").
		WithDetail("requested", requested.String()).
		WithDetail("available", available.String())
}

func AmountExceedsLimit(amount, limit Money) *Error {
	return NewError(KindAmountExceedsLimit, "amount exceeds the configured transaction limit").
		WithDetail("amount", amount.String()).
		WithDetail("limit", limit.String())
}

func BalanceExceedsLimit(newBalance, limit Money) *Error {
	return NewError(KindBalanceExceedsLimit, "resulting balance exceeds the configured balance limit").
		WithDetail("new_balance", newBalance.String()).
		WithDetail("limit", limit.String())
}

func RateLimitExceeded(scope, subject string, resetAt int64) *Error {
	return NewError(KindRateLimitExceeded, "rate limit exceeded").
		WithDetail("scope", scope).
		WithDetail("subject", subject).
		WithDetail("remaining", 0).
		WithDetail("reset_at", resetAt)
}
