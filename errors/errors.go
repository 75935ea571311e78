// Package errors wraps pkg/errors and adds the error codes used across the
// ingestion pipeline and the HTTP resources.
package errors

import (
	"github.com/pkg/errors"
)

// Code is an error code which can be used to check against a given error. For
// example, see the Is() method.
type Code string

const (
	ErrUncoded             Code = "Uncoded"
	ErrSourceNotFound      Code = "SourceNotFound"
	ErrUnresolvedPartition Code = "UnresolvedPartition"
	ErrSchemaMismatch      Code = "SchemaMismatch"
	ErrDecode              Code = "DecodeError"
	ErrNetwork             Code = "NetworkError"
	ErrStorage             Code = "StorageError"
	ErrValidation          Code = "ValidationError"
	ErrNotFound            Code = "NotFound"
	ErrConflict            Code = "Conflict"
	ErrBadRequest          Code = "BadRequest"
)

// New returns a coded error carrying a stack trace.
func New(code Code, message string) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
	})
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...interface{}) error {
	return New(code, errors.Errorf(format, args...).Error())
}

// WithCode attaches code to err. The original error stays reachable through
// Unwrap, so callers can still match on it.
func WithCode(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
		cause:   err,
	})
}

// WithCodef is WithCode with a format string.
func WithCodef(err error, code Code, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return WithCode(err, code, errors.Errorf(format, args...).Error())
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func Cause(err error) error {
	return errors.Cause(err)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Is is a fork of the Is() method from `pkg/errors` which takes as its target
// an error Code instead of an error.
func Is(err error, target Code) bool {
	match := codedError{
		Code: target,
	}
	return errors.Is(err, match)
}

// CodeOf returns the outermost code found in err's chain, or ErrUncoded.
func CodeOf(err error) Code {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrUncoded
}

// Message returns the message of the outermost coded error in err's chain,
// without the wrapped cause. Uncoded errors return an empty string.
func Message(err error) string {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return ""
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func WithMessage(err error, message string) error {
	return errors.WithMessage(err, message)
}

func WithMessagef(err error, format string, args ...interface{}) error {
	return errors.WithMessagef(err, format, args...)
}

func WithStack(err error) error {
	return errors.WithStack(err)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, fmt string, args ...interface{}) error {
	return errors.Wrapf(err, fmt, args...)
}

// codedError is the fundamental type used by this package to provide coded
// errors.
type codedError struct {
	Code    Code
	Message string
	cause   error
}

func (ce codedError) Error() string {
	if ce.cause != nil {
		return ce.Message + ": " + ce.cause.Error()
	}
	return ce.Message
}

func (ce codedError) Unwrap() error {
	return ce.cause
}

func (ce codedError) Is(err error) bool {
	if e, ok := err.(codedError); ok && ce.Code == e.Code {
		return true
	}
	return false
}
