package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service layer wraps exactly one of these.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrMalformedData = errors.New("malformed data")
)

// Error carries a user-facing message and the kind it belongs to.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validationf returns an ErrValidation error.
func Validationf(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

// NotFoundf returns an ErrNotFound error.
func NotFoundf(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

// Conflictf returns an ErrConflict error.
func Conflictf(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

// Malformedf returns an ErrMalformedData error.
func Malformedf(format string, args ...any) error {
	return newError(ErrMalformedData, format, args...)
}
