package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the application layer.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindModelProcessing    ErrorKind = "model_processing"
	KindNotFound           ErrorKind = "not_found"
)

// ErrModelUnavailable means the model could not be reached within the retry budget.
var ErrModelUnavailable = errors.New("model unavailable")

// Error is an application error with a kind and an optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Unavailable(msg string, cause error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: msg, Cause: cause}
}

func Processing(msg string, cause error) *Error {
	return &Error{Kind: KindModelProcessing, Message: msg, Cause: cause}
}

// KindOf returns the kind of err. Unclassified errors count as model processing
// failures so they are never mistaken for client mistakes.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, ErrModelUnavailable) {
		return KindServiceUnavailable
	}
	return KindModelProcessing
}
