// Package apperr defines the typed errors returned by the service layer.
// Every failure carries a Kind that the HTTP layer maps to a status code,
// a stable machine-readable Code and a human message.
package apperr

import (
    "errors"
    "fmt"
)

// Kind groups errors by how callers should react to them.
type Kind string

const (
    KindValidation       Kind = "validation"
    KindUnauthorized     Kind = "unauthorized"
    KindForbidden        Kind = "forbidden"
    KindNotFound         Kind = "not_found"
    KindConflict         Kind = "conflict"
    KindInvalidMediaType Kind = "invalid_media_type"
    KindFileError        Kind = "file_error"
    KindInternal         Kind = "internal"
)

// Codes shared between services and handlers.
const (
    CodeValidation         = "VALIDATION_FAILED"
    CodeInvalidStatus      = "INVALID_STATUS"
    CodeInvalidTransition  = "INVALID_TRANSITION"
    CodeUnauthorized       = "UNAUTHORIZED"
    CodeInvalidCredentials = "INVALID_CREDENTIALS"
    CodeTokenExpired       = "TOKEN_EXPIRED"
    CodeTokenInvalid       = "TOKEN_INVALID"
    CodeForbidden          = "FORBIDDEN"
    CodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
    CodeNotFound           = "NOT_FOUND"
    CodeEmailExists        = "EMAIL_EXISTS"
    CodeUsernameExists     = "USERNAME_EXISTS"
    CodeInvalidMediaType   = "INVALID_MEDIA_TYPE"
    CodeFileTooLarge       = "FILE_TOO_LARGE"
    CodeFileRejected       = "FILE_REJECTED"
    CodeFileWrite          = "FILE_WRITE_FAILED"
    CodeInternal           = "INTERNAL"
)

// Error is the concrete error type produced by services.
type Error struct {
    Kind    Kind
    Code    string
    Message string
    Fields  map[string]string // per-field validation messages, keyed by json name
    Err     error             // underlying cause, never shown to clients
}

func (e *Error) Error() string {
    if e.Err != nil {
        return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
    }
    return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind (and Code when set), so
// errors.Is(err, apperr.ErrForbidden) works for any forbidden error.
func (e *Error) Is(target error) bool {
    t, ok := target.(*Error)
    if !ok {
        return false
    }
    if t.Kind != e.Kind {
        return false
    }
    return t.Code == "" || t.Code == e.Code
}

// Kind-only targets for errors.Is.
var (
    ErrValidation       = &Error{Kind: KindValidation}
    ErrUnauthorized     = &Error{Kind: KindUnauthorized}
    ErrForbidden        = &Error{Kind: KindForbidden}
    ErrNotFound         = &Error{Kind: KindNotFound}
    ErrConflict         = &Error{Kind: KindConflict}
    ErrInvalidMediaType = &Error{Kind: KindInvalidMediaType}
    ErrFileError        = &Error{Kind: KindFileError}
    ErrInternal         = &Error{Kind: KindInternal}
)

func Validation(msg string, fields map[string]string) *Error {
    return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg, Fields: fields}
}

// InvalidField is a validation error about a single field.
func InvalidField(code, field, msg string) *Error {
    return &Error{Kind: KindValidation, Code: code, Message: msg, Fields: map[string]string{field: msg}}
}

func Unauthorized(code, msg string) *Error {
    return &Error{Kind: KindUnauthorized, Code: code, Message: msg}
}

func Forbidden(code, msg string) *Error {
    return &Error{Kind: KindForbidden, Code: code, Message: msg}
}

func NotFound(what string) *Error {
    return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func Conflict(code, msg string) *Error {
    return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func InvalidMediaType(msg string) *Error {
    return &Error{Kind: KindInvalidMediaType, Code: CodeInvalidMediaType, Message: msg}
}

func FileError(code, msg string, err error) *Error {
    return &Error{Kind: KindFileError, Code: code, Message: msg, Err: err}
}

// Internal wraps an unexpected failure. The message shown to clients is generic.
func Internal(op string, err error) *Error {
    return &Error{Kind: KindInternal, Code: CodeInternal, Message: op, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
    var e *Error
    if errors.As(err, &e) {
        return e.Kind
    }
    return KindInternal
}

// As is a shorthand for errors.As into *Error.
func As(err error) (*Error, bool) {
    var e *Error
    ok := errors.As(err, &e)
    return e, ok
}
