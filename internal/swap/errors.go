// internal/swap/errors.go
package swap

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a trade attempt, or part of it, did not succeed.
type ErrorKind string

const (
	KindInvalidAmount       ErrorKind = "invalid_amount"
	KindQuoteUnavailable    ErrorKind = "quote_unavailable"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindSigningRejected     ErrorKind = "signing_rejected"
	KindBuildFailed         ErrorKind = "build_failed"
	KindSubmissionFailed    ErrorKind = "submission_failed"
	// KindConfirmationTimeout is non-fatal: the swap stays Submitted.
	KindConfirmationTimeout ErrorKind = "confirmation_timeout"
	// KindFeeTransferFailed is non-fatal: the attempt still succeeds.
	KindFeeTransferFailed ErrorKind = "fee_transfer_failed"
	KindUnknown           ErrorKind = "unknown_error"
)

// Describe returns a human readable explanation for the UI.
func (k ErrorKind) Describe() string {
	switch k {
	case KindInvalidAmount:
		return "The amount entered is not a valid positive amount for this token."
	case KindQuoteUnavailable:
		return "No price quote is available right now. Showing the last known rate."
	case KindInsufficientBalance:
		return "Not enough SOL to cover the trade, the platform fee and network costs."
	case KindSigningRejected:
		return "The wallet did not approve the transaction."
	case KindBuildFailed:
		return "The swap transaction could not be prepared. Please try again."
	case KindSubmissionFailed:
		return "The network did not accept the transaction."
	case KindConfirmationTimeout:
		return "The swap was submitted but not yet confirmed. Track it with the signature shown."
	case KindFeeTransferFailed:
		return "Your swap succeeded. The platform fee transfer did not go through."
	default:
		return "Something went wrong. Check the transaction list before retrying."
	}
}

// IsFatal reports whether the kind terminates an attempt with Error.
func (k ErrorKind) IsFatal() bool {
	return k != KindConfirmationTimeout && k != KindFeeTransferFailed
}

// Error carries the failure class and the upstream cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrSigningRejected) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
	}
	return false
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Sentinels for errors.Is.
var (
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount}
	ErrQuoteUnavailable    = &Error{Kind: KindQuoteUnavailable}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrSigningRejected     = &Error{Kind: KindSigningRejected}
	ErrBuildFailed         = &Error{Kind: KindBuildFailed}
	ErrSubmissionFailed    = &Error{Kind: KindSubmissionFailed}
	ErrUnknown             = &Error{Kind: KindUnknown}
)

var (
	// ErrSuperseded is returned to a quote request replaced by a newer one.
	ErrSuperseded = errors.New("quote request superseded")
	// ErrAttemptInProgress rejects Start while an attempt is active.
	ErrAttemptInProgress = errors.New("trade attempt already in progress")
	// ErrClosed is returned by components used after teardown.
	ErrClosed = errors.New("component closed")
)

// KindOf extracts the ErrorKind, defaulting to KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
