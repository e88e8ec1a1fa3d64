// Package apperr is the error taxonomy shared by the knowledge base, the
// check façade and every adapter built on top of them. Each failure carries a
// Code so that callers can branch with errors.Is and adapters can map it onto
// a transport status without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure category.
type Code string

const (
	// CodeInsufficientInput: fewer than two names were supplied to a check.
	CodeInsufficientInput Code = "insufficient_input"
	// CodeNotFound: a drug name or canonical ID is unknown to the KB.
	CodeNotFound Code = "not_found"
	// CodeConflictingFact: an upsert would change the severity of an
	// existing fact without the override flag.
	CodeConflictingFact Code = "conflicting_fact"
	// CodeDuplicateSynonym: a synonym is already bound to another drug.
	CodeDuplicateSynonym Code = "duplicate_synonym"
	// CodeDuplicateDrug: a canonical ID already exists.
	CodeDuplicateDrug Code = "duplicate_drug"
	// CodeInvalidInput: a malformed record or request body.
	CodeInvalidInput Code = "invalid_input"
	// CodeStorageUnavailable: the persistence collaborator failed.
	CodeStorageUnavailable Code = "storage_unavailable"
	// CodeInternal is used for anything not classified above.
	CodeInternal Code = "internal"
)

// Sentinels usable as errors.Is targets. Matching is by Code only.
var (
	ErrInsufficientInput  = &Error{Code: CodeInsufficientInput, Message: "insufficient input"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrConflictingFact    = &Error{Code: CodeConflictingFact, Message: "conflicting fact"}
	ErrDuplicateSynonym   = &Error{Code: CodeDuplicateSynonym, Message: "duplicate synonym"}
	ErrDuplicateDrug      = &Error{Code: CodeDuplicateDrug, Message: "duplicate drug"}
	ErrInvalidInput       = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable, Message: "storage unavailable"}
)

// Error is the structured error carried across package boundaries.
type Error struct {
	Code    Code
	Message string
	// Detail names the offending input so the caller can correct it.
	Detail string
	Cause  error
}

// Error renders "[code] message: detail: cause", omitting empty segments.
func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New builds an error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause. A nil cause yields nil.
func Wrap(cause error, code Code, msg string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Cause: cause}
}

// WithDetail returns a copy of e with Detail set.
func (e *Error) WithDetail(detail string) *Error {
	if e == nil {
		return nil
	}
	c := *e
	c.Detail = detail
	return &c
}

// CodeOf extracts the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code onto the status an HTTP adapter should return.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInsufficientInput, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflictingFact, CodeDuplicateSynonym, CodeDuplicateDrug:
		return http.StatusConflict
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
