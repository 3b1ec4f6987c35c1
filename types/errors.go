package types

import (
	"errors"
	"fmt"
)

// Kind classifies a tool failure. Every error that crosses a tool boundary
// carries exactly one kind so callers can react without string matching.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindWritePolicy   Kind = "write_policy"
	KindTimeout       Kind = "timeout"
	KindQuery         Kind = "query"
	KindGeneration    Kind = "generation"
)

// Error is the failure type surfaced by every toolset operation. Message is
// written for the calling agent; Cause preserves the underlying driver or
// network error verbatim.
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

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind carried by err, or KindQuery when err is not a
// toolset error. A nil err has no kind.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindQuery
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}
