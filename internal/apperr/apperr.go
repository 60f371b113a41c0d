// Package apperr classifies failures so callers can pick a fallback by kind
// instead of matching error strings.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindStorage         Kind = "storage"
	KindNetwork         Kind = "network"
	KindBackend         Kind = "backend"
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindConfig          Kind = "config"
	KindUnknown         Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int // HTTP status for backend errors, 0 otherwise
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap attaches a kind to err. An err that already carries a kind is returned as is.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// Backend builds a backend error for a non-2xx response. 401 is classified as unauthenticated.
func Backend(op string, status int, body string) *Error {
	kind := KindBackend
	if status == 401 {
		kind = KindUnauthenticated
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf("server returned %d: %s", status, body),
		Status:  status,
	}
}

// IsKind checks whether the first typed error in the chain matches kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first typed error in the chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}
