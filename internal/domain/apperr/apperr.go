package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react to it (HTTP status mapping, CLI exit codes).
type Kind string

const (
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
	KindForbidden         Kind = "FORBIDDEN"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindExtractionFailure Kind = "EXTRACTION_FAILURE"
)

// Error is a classified error with a message safe to show to the user
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is
var (
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrExtractionFailure = &Error{Kind: KindExtractionFailure}
)

func InvalidArgument(msg string) error { return &Error{Kind: KindInvalidArgument, Message: msg} }
func Forbidden(msg string) error       { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) error        { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) error        { return &Error{Kind: KindConflict, Message: msg} }

// ExtractionFailure wraps a gateway or parsing error
func ExtractionFailure(msg string, cause error) error {
	return &Error{Kind: KindExtractionFailure, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first *Error in the chain, or "" if there is none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing message of a classified error, falling back to err.Error()
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
