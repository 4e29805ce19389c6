package groupbuy

import (
	"errors"
	"fmt"
)

// ErrorKind is the taxonomy from the error-handling design: each kind
// maps to a distinct user-visible behavior at the response layer.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindVersionConflict     ErrorKind = "version_conflict"
	KindPreconditionFailed  ErrorKind = "precondition_failed"
	KindAuthorizationDenied ErrorKind = "authorization_denied"
	KindNotFound            ErrorKind = "not_found"
	KindUpstreamError       ErrorKind = "upstream_error"
	KindIntegrityError      ErrorKind = "integrity_error"
)

// Error is the core package's single error type. Field is set only
// for ValidationError raised against a specific dialog element.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapErr(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// ValidationErrorf builds a field-scoped ValidationError.
func ValidationErrorf(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func VersionConflictError() *Error {
	return newErr(KindVersionConflict, "版本已變更，請重新整理後再試")
}

func PreconditionFailedError(msg string) *Error {
	return newErr(KindPreconditionFailed, msg)
}

func AuthorizationDeniedError(msg string) *Error {
	return newErr(KindAuthorizationDenied, msg)
}

func NotFoundError(msg string) *Error {
	return newErr(KindNotFound, msg)
}

func UpstreamErrorf(cause error, format string, args ...any) *Error {
	return wrapErr(KindUpstreamError, fmt.Sprintf(format, args...), cause)
}

func IntegrityErrorf(format string, args ...any) *Error {
	return newErr(KindIntegrityError, fmt.Sprintf(format, args...))
}

// KindOf extracts the ErrorKind from err, if it (or something it
// wraps) is a *Error. ok is false for plain errors.
func KindOf(err error) (ErrorKind, bool) {
	var gbErr *Error
	if errors.As(err, &gbErr) {
		return gbErr.Kind, true
	}
	return "", false
}
