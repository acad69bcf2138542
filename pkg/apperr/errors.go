// Package apperr defines the coded error type shared by every layer of the
// service. Codes drive the HTTP status; reasons refine a code so callers and
// tests can tell denials apart even when they share a status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes.
const (
	EInternal        = "internal error"
	EInvalid         = "invalid"
	EUnauthenticated = "unauthenticated"
	EForbidden       = "forbidden"
	ENotFound        = "not found"
	EConflict        = "conflict"
)

// Reasons refining EForbidden, EUnauthenticated and ENotFound.
const (
	ReasonUnauthorized        = "Unauthorized"
	ReasonCrossTenantAccess   = "CrossTenantAccess"
	ReasonSelfDeleteForbidden = "SelfDeleteForbidden"
	ReasonFieldNotPermitted   = "FieldNotPermitted"
	ReasonQuotaExceeded       = "QuotaExceeded"
	ReasonInvalidCredentials  = "InvalidCredentials"
	ReasonAccountSuspended    = "AccountSuspended"
	ReasonTenantNotFound      = "TenantNotFound"
	ReasonTenantInactive      = "TenantInactive"
)

// Error is the error struct of the service.
//
// Code targets automated handlers, Reason distinguishes the cause within a
// code, Msg is safe to show to the caller. Op and Err chain errors together
// in a logical stack trace for operators.
type Error struct {
	Code   string
	Reason string
	Msg    string
	Op     string
	Err    error
}

// Error implements the error interface by writing out the recursive messages.
func (e *Error) Error() string {
	if e.Msg != "" && e.Err != nil {
		var b strings.Builder
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
		return b.String()
	} else if e.Msg != "" {
		return e.Msg
	} else if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the outermost coded error, or EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return EInternal
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return ErrorCode(e.Err)
	}
	return EInternal
}

// ErrorReason returns the first reason found in the chain.
func ErrorReason(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return ErrorReason(e.Err)
	}
	return ""
}

// ErrorOp returns the op of the error, if available.
func ErrorOp(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if e.Op != "" {
		return e.Op
	}
	if e.Err != nil {
		return ErrorOp(e.Err)
	}
	return ""
}

// ErrorMessage returns the human-readable message of the error. Internal
// errors never leak their detail.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) || ErrorCode(err) == EInternal {
		return "An internal error has occurred."
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return ErrorMessage(e.Err)
	}
	return e.Code
}

// HTTPStatus maps an error code to its HTTP status.
func HTTPStatus(code string) int {
	switch code {
	case EInvalid:
		return http.StatusBadRequest
	case EUnauthenticated:
		return http.StatusUnauthorized
	case EForbidden:
		return http.StatusForbidden
	case ENotFound:
		return http.StatusNotFound
	case EConflict:
		return http.StatusConflict
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// Invalid returns a validation error.
func Invalid(msg string) *Error {
	return &Error{Code: EInvalid, Msg: msg}
}

// NotFound returns a not found error for the named entity.
func NotFound(entity string) *Error {
	return &Error{Code: ENotFound, Msg: entity + " not found"}
}

// Conflict returns a uniqueness conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: EConflict, Msg: msg}
}

// Forbidden returns an authorization denial with a reason.
func Forbidden(reason, msg string) *Error {
	return &Error{Code: EForbidden, Reason: reason, Msg: msg}
}

// Unauthenticated returns a 401 error.
func Unauthenticated(msg string) *Error {
	return &Error{Code: EUnauthenticated, Msg: msg}
}

// Internal wraps an unexpected error under an operation name.
func Internal(op string, err error) *Error {
	return &Error{Code: EInternal, Op: op, Err: err}
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}
