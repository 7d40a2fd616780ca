// Package domainerrors carries the error taxonomy shared by every service.
//
// Every business failure is an *Error with a stable Code so callers branch on
// kind instead of message text. Validation failures additionally carry the full
// list of offending fields, and authorization failures carry the authorizer's
// reason code.
package domainerrors

import (
	"errors"
	"strings"
)

// Code is a stable, transport-agnostic error kind.
type Code string

const (
	// Business outcomes.
	CodeValidation        Code = "validation_error"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeDocumentExpired   Code = "document_expired"
	CodeInvalidTransition Code = "invalid_transition"
	CodeInvalidState      Code = "invalid_state"

	// Collaborator failures. StorageFailure keeps its cause reachable through errors.Is/As.
	CodeStorageFailure Code = "storage_failure"

	// Boundary and programming errors.
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeInvariantViolation Code = "invariant_violation"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal_error"
)

// FieldError names one offending input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the concrete error type returned by services.
type Error struct {
	Code    Code
	Message string
	// Reason is the authorizer's stable reason code for CodeForbidden.
	Reason string
	// Fields lists every invalid field for CodeValidation.
	Fields []FieldError
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code to an underlying cause. A nil cause yields a plain coded error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// Validation reports every invalid field at once.
func Validation(msg string, fields []FieldError) error {
	return &Error{Code: CodeValidation, Message: msg, Fields: fields}
}

// Forbidden reports an authorization failure with its reason code.
func Forbidden(reason, msg string) error {
	return &Error{Code: CodeForbidden, Message: msg, Reason: reason}
}

// StorageFailure wraps a persistence or blob-storage collaborator error unmodified.
func StorageFailure(err error, msg string) error {
	return &Error{Code: CodeStorageFailure, Message: msg, Err: err}
}

// HasCode reports whether err, or any error it wraps, is an *Error with code.
// Only the outermost *Error is considered so a wrapped cause cannot change the kind.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the error's code, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the invalid fields carried by a validation error.
func FieldsOf(err error) []FieldError {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// ReasonOf returns the reason code carried by a forbidden error.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

// MessageOf returns the human-readable message without the code prefix.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
