// Package domainerrors defines coded errors shared by services and transports.
//
// Services return these (optionally wrapping an underlying cause) so that
// transport layers can map them deterministically to protocol status codes
// without inspecting messages. Infrastructure facts live in
// pkg/platform/sentinel and are translated into codes by services.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a domain error. Codes are part of the public
// API contract and appear verbatim in error responses.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnavailable        Code = "unavailable"
	CodeRateLimited        Code = "rate_limited"
	CodeInternal           Code = "internal_error"

	// Enrollment taxonomy.
	CodeInvalidEvidence    Code = "invalid_evidence"
	CodeNoChallengeIssued  Code = "no_challenge_issued"
	CodeVerificationFailed Code = "verification_failed"
	CodeBiometricRequired  Code = "biometric_required"
	CodeMissingField       Code = "missing_field"
	CodeStoreFailure       Code = "store_failure"
)

// Error is a coded domain error. Field is set for field-scoped failures
// such as CodeMissingField.
type Error struct {
	Code    Code
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a domain error with the same code and message.
// This lets tests use errors.Is against a freshly constructed error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message && e.Field == t.Field
}

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// MissingField creates a CodeMissingField error naming the absent field.
func MissingField(field string) error {
	return &Error{
		Code:    CodeMissingField,
		Message: "missing required field: " + field,
		Field:   field,
	}
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost domain code in err's chain, or CodeInternal
// when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost domain message in err's chain.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// FieldOf returns the field name attached to the outermost domain error.
func FieldOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}
