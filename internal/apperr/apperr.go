// Package apperr defines the operational error taxonomy shared by all
// handlers and middleware. Every failure in the request path is forwarded to
// the single classify-and-respond boundary (the echo HTTPErrorHandler built
// by Handler); nothing responds with an error payload on its own.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a classified failure. Kinds are programmatic; the HTTP
// response carries only status and message.
type Kind string

const (
	KindInvalidField     Kind = "invalid_field"
	KindValidationFailed Kind = "validation_failed"
	KindDuplicateValue   Kind = "duplicate_value"
	KindTokenInvalid     Kind = "token_invalid"
	KindTokenExpired     Kind = "token_expired"
	KindNoCredential     Kind = "no_credential"
	KindSubjectGone      Kind = "subject_gone"
	KindStaleToken       Kind = "stale_token"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindUnexpected       Kind = "unexpected"
)

// Error is an operational error: an expected, user-facing failure with an
// HTTP status. Non-operational errors (Operational=false) are logged
// server-side and reported generically in production.
type Error struct {
	Kind        Kind
	Status      int
	Message     string
	Err         error // wrapped cause, if any
	Operational bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusLabel returns "fail" for client errors and "error" otherwise,
// mirroring the status field of every error response body.
func (e *Error) StatusLabel() string {
	if e.Status >= 400 && e.Status < 500 {
		return "fail"
	}
	return "error"
}

// New builds a plain operational error with no specific kind. Used for
// one-off failures such as bad credentials on login.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message, Operational: true}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: 404, Message: message, Operational: true}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Status: 403, Message: message, Operational: true}
}

func NoCredential(message string) *Error {
	return &Error{Kind: KindNoCredential, Status: 401, Message: message, Operational: true}
}

func SubjectGone(message string) *Error {
	return &Error{Kind: KindSubjectGone, Status: 401, Message: message, Operational: true}
}

func StaleToken(message string) *Error {
	return &Error{Kind: KindStaleToken, Status: 401, Message: message, Operational: true}
}

func TokenInvalid(message string) *Error {
	return &Error{Kind: KindTokenInvalid, Status: 401, Message: message, Operational: true}
}

func TokenExpired(message string) *Error {
	return &Error{Kind: KindTokenExpired, Status: 401, Message: message, Operational: true}
}

// ResetTokenInvalid covers failed password-reset consumption. It carries the
// TokenInvalid kind but responds 400: the reset flow never distinguishes
// "not found" from "expired" to the caller.
func ResetTokenInvalid() *Error {
	return &Error{Kind: KindTokenInvalid, Status: 400, Message: "Token is invalid or has expired", Operational: true}
}

// Validation joins one or more field-rule messages into a single 400.
func Validation(messages ...string) *Error {
	return &Error{
		Kind:        KindValidationFailed,
		Status:      400,
		Message:     strings.Join(messages, " / "),
		Operational: true,
	}
}

func InvalidField(field string, value any) *Error {
	return &Error{
		Kind:        KindInvalidField,
		Status:      400,
		Message:     fmt.Sprintf("invalid %s: %v", field, value),
		Operational: true,
	}
}

func Duplicate(detail string) *Error {
	msg := "duplicate field value"
	if detail != "" {
		msg = "duplicate field value: " + detail
	}
	return &Error{Kind: KindDuplicateValue, Status: 400, Message: msg, Operational: true}
}

// Unexpected wraps an internal fault. It is the only non-operational kind:
// production responses hide the cause behind a generic message.
func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Status: 500, Message: "something went wrong", Err: err}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
