package apperrors

import (
	"errors"
	"strings"
)

// appError is the concrete implementation behind apperrors.Error.
type appError struct {
	msg        string  // primary error message
	base       error   // base error for errors.Is/As compatibility
	wrapped    []error // additional wrapped errors
	statuscode int     // HTTP status code
}

// New creates a root-level error with the given message. Status code is
// unset; callers chain SetStatusCode when the error maps to an HTTP result.
func New(msg string) Error {
	return &appError{msg: msg}
}

// Error returns the primary message.
func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the primary message followed by all wrapped errors.
func (e *appError) ErrorAll() string {
	if len(e.wrapped) == 0 {
		return e.msg
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.wrapped {
		if err.Error() == e.msg {
			continue
		}
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the base error for errors.Is / errors.As.
func (e *appError) Unwrap() error {
	return e.base
}

// UnwrapAll returns all wrapped errors in the order they were attached.
func (e *appError) UnwrapAll() []error {
	return e.wrapped
}

// New derives a fresh error that uses the current error as its base. The
// derived error inherits the status code and starts a new message.
func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statuscode: e.statuscode,
	}
}

// Msg creates a new error with the given message, wrapping the original.
func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		wrapped:    append([]error{e}, e.wrapped...),
		statuscode: e.statuscode,
	}
}

// MsgErr creates a new error with the given message, wrapping the original
// and any additional errors.
func (e *appError) MsgErr(msg string, errs ...error) Error {
	return &appError{
		msg:        msg,
		base:       e,
		wrapped:    append([]error{e}, errs...),
		statuscode: e.statuscode,
	}
}

// Err attaches additional errors while keeping the current message.
func (e *appError) Err(errs ...error) Error {
	return &appError{
		msg:        e.msg,
		base:       e,
		wrapped:    append([]error{e}, errs...),
		statuscode: e.statuscode,
	}
}

// SetStatusCode returns a copy with the given HTTP status code.
func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

// StatusCode returns the HTTP status code, zero if unset.
func (e *appError) StatusCode() int {
	return e.statuscode
}

// Is reports whether the target matches the base error or any wrapped error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrapped {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
