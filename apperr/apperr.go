// Package apperr defines the error kinds shared by the marketplace services
// and their mapping to HTTP status codes.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error. The string value doubles as the API error code.
type Kind string

const (
	KindNotFound                Kind = "NOT_FOUND"
	KindInvalidTransition       Kind = "INVALID_TRANSITION"
	KindTerminalState           Kind = "TERMINAL_STATE"
	KindAmountMismatch          Kind = "AMOUNT_MISMATCH"
	KindInvalidFeeConfiguration Kind = "INVALID_FEE_CONFIGURATION"
	KindAlreadyReleased         Kind = "ALREADY_RELEASED"
	KindNotReleasable           Kind = "NOT_RELEASABLE"
	KindInsufficientHeldFunds   Kind = "INSUFFICIENT_HELD_FUNDS"
	KindSelfActionForbidden     Kind = "SELF_ACTION_FORBIDDEN"
	KindUnauthorized            Kind = "UNAUTHORIZED"
	KindValidation              Kind = "VALIDATION_ERROR"
	KindConflict                Kind = "CONFLICT"
	KindTailorIneligible        Kind = "TAILOR_INELIGIBLE"
	KindGatewayTimeout          Kind = "GATEWAY_TIMEOUT"
	KindGateway                 Kind = "GATEWAY_ERROR"
	KindInternal                Kind = "INTERNAL"
)

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so callers can
// write errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the operation may succeed if retried unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == KindConflict || e.Kind == KindGatewayTimeout
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound                = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidTransition       = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrTerminalState           = &Error{Kind: KindTerminalState, Message: "order is in a terminal state"}
	ErrAmountMismatch          = &Error{Kind: KindAmountMismatch, Message: "amount does not match the locked total"}
	ErrInvalidFeeConfiguration = &Error{Kind: KindInvalidFeeConfiguration, Message: "invalid fee configuration"}
	ErrAlreadyReleased         = &Error{Kind: KindAlreadyReleased, Message: "escrow already released"}
	ErrNotReleasable           = &Error{Kind: KindNotReleasable, Message: "escrow is not releasable"}
	ErrInsufficientHeldFunds   = &Error{Kind: KindInsufficientHeldFunds, Message: "insufficient held funds"}
	ErrSelfActionForbidden     = &Error{Kind: KindSelfActionForbidden, Message: "admins cannot perform this action on themselves"}
	ErrUnauthorized            = &Error{Kind: KindUnauthorized, Message: "actor is not allowed to perform this action"}
	ErrValidation              = &Error{Kind: KindValidation, Message: "invalid request data"}
	ErrConflict                = &Error{Kind: KindConflict, Message: "concurrent update detected"}
	ErrTailorIneligible        = &Error{Kind: KindTailorIneligible, Message: "tailor cannot receive orders"}
	ErrGatewayTimeout          = &Error{Kind: KindGatewayTimeout, Message: "payment gateway timed out"}
	ErrGateway                 = &Error{Kind: KindGateway, Message: "payment gateway error"}
)

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindGatewayTimeout
	default:
		return KindInternal
	}
}

// Message returns the human-readable message for err. Unclassified errors
// never leak their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

var kindToStatus = map[Kind]int{
	KindNotFound:                http.StatusNotFound,
	KindInvalidTransition:       http.StatusConflict,
	KindTerminalState:           http.StatusConflict,
	KindAmountMismatch:          http.StatusUnprocessableEntity,
	KindInvalidFeeConfiguration: http.StatusUnprocessableEntity,
	KindAlreadyReleased:         http.StatusConflict,
	KindNotReleasable:           http.StatusConflict,
	KindInsufficientHeldFunds:   http.StatusUnprocessableEntity,
	KindSelfActionForbidden:     http.StatusForbidden,
	KindUnauthorized:            http.StatusForbidden,
	KindValidation:              http.StatusBadRequest,
	KindConflict:                http.StatusConflict,
	KindTailorIneligible:        http.StatusUnprocessableEntity,
	KindGatewayTimeout:          http.StatusGatewayTimeout,
	KindGateway:                 http.StatusBadGateway,
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}
