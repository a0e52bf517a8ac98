// Package apperrors defines the error taxonomy surfaced by the ledger core.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Code is a stable identifier for an error class, independent of the
// human-readable message. Callers at the perimeter map Code to a transport
// status (HTTP, gRPC, ...).
type Code string

const (
	CodeBadRequest             Code = "BAD_REQUEST"
	CodeNotFound               Code = "NOT_FOUND"
	CodeInactiveAccount        Code = "INACTIVE_ACCOUNT"
	CodeCurrencyMismatch       Code = "CURRENCY_MISMATCH"
	CodeInsufficientFunds      Code = "INSUFFICIENT_FUNDS"
	CodeConflict               Code = "CONFLICT"
	CodeIllegalStateTransition Code = "ILLEGAL_STATE_TRANSITION"
	CodeAlreadyReversed        Code = "ALREADY_REVERSED"
	CodeConcurrencyExhausted   Code = "CONCURRENCY_EXHAUSTED"
	CodeStoreUnavailable       Code = "STORE_UNAVAILABLE"
	CodeCancelled              Code = "CANCELLED"
	CodeUnauthorized           Code = "UNAUTHORIZED"
)

// AppError is the error type every exported core operation returns. It
// carries a stable Code plus an optional underlying cause.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Sentinel errors for use with errors.Is, matching the Code-level
// classification above. AppError values produced by the constructors below
// wrap these so errors.Is(err, ErrNotFound) works through the AppError chain.
var (
	ErrBadRequest              = errors.New("bad request")
	ErrNotFound                = errors.New("resource not found")
	ErrInactiveAccount         = errors.New("account is inactive")
	ErrCurrencyMismatch        = errors.New("currency mismatch")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrConflict                = errors.New("conflicting write")
	ErrIllegalStateTransition  = errors.New("illegal transaction state transition")
	ErrAlreadyReversed         = errors.New("transaction already reversed")
	ErrConcurrencyExhausted    = errors.New("concurrency retries exhausted")
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrCancelled               = errors.New("operation cancelled")
	ErrUnauthorized            = errors.New("caller not authorized")
)

func New(code Code, cause error, msg string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(msg, args...), Cause: cause}
}

func NewBadRequestError(msg string, args ...any) *AppError {
	return New(CodeBadRequest, ErrBadRequest, msg, args...)
}

func NewNotFoundError(msg string, args ...any) *AppError {
	return New(CodeNotFound, ErrNotFound, msg, args...)
}

func NewInactiveAccountError(accountID string) *AppError {
	return New(CodeInactiveAccount, ErrInactiveAccount, "account %s is inactive", accountID)
}

func NewCurrencyMismatchError(expected, actual string) *AppError {
	return New(CodeCurrencyMismatch, ErrCurrencyMismatch, "expected currency %s, got %s", expected, actual)
}

// InsufficientFundsError carries the available/requested amounts so callers
// can read them back off the error.
type InsufficientFundsError struct {
	*AppError
	Available decimal.Decimal
	Requested decimal.Decimal
}

func NewInsufficientFundsError(accountID string, available, requested decimal.Decimal) *InsufficientFundsError {
	return &InsufficientFundsError{
		AppError:  New(CodeInsufficientFunds, ErrInsufficientFunds, "account %s has %s available, requested %s", accountID, available.String(), requested.String()),
		Available: available,
		Requested: requested,
	}
}

// Unwrap exposes the embedded *AppError so CodeOf and errors.Is see through
// to its Code and sentinel.
func (e *InsufficientFundsError) Unwrap() error { return e.AppError }

func NewConflictError(msg string, args ...any) *AppError {
	return New(CodeConflict, ErrConflict, msg, args...)
}

func NewIllegalStateTransitionError(from, to string) *AppError {
	return New(CodeIllegalStateTransition, ErrIllegalStateTransition, "cannot transition from %s to %s", from, to)
}

func NewAlreadyReversedError(transactionID string) *AppError {
	return New(CodeAlreadyReversed, ErrAlreadyReversed, "transaction %s already reversed", transactionID)
}

func NewConcurrencyExhaustedError(attempts int) *AppError {
	return New(CodeConcurrencyExhausted, ErrConcurrencyExhausted, "exhausted %d retries under contention", attempts)
}

func NewStoreUnavailableError(cause error) *AppError {
	return New(CodeStoreUnavailable, ErrStoreUnavailable, "store unavailable")
}

func NewCancelledError(cause error) *AppError {
	return New(CodeCancelled, ErrCancelled, "operation cancelled or deadline exceeded")
}

func NewUnauthorizedError(msg string, args ...any) *AppError {
	return New(CodeUnauthorized, ErrUnauthorized, msg, args...)
}

// CodeOf extracts the Code from err if it is (or wraps) an *AppError.
func CodeOf(err error) (Code, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return "", false
}
