package alpaca

import (
	"errors"
	"fmt"
)

// Error is an ASCOM error reported in the ErrorNumber and ErrorMessage
// fields of a response.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on the error code, so wrapped errors with a more specific
// message still compare equal to the sentinel errors below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

const (
	codeNotImplemented   = 0x400
	codeInvalidValue     = 0x401
	codeNotConnected     = 0x407
	codeInvalidOperation = 0x40B
	codeDriverError      = 0x500
)

var (
	ErrPropertyNotImplemented = &Error{codeNotImplemented, "property or method not implemented"}
	ErrInvalidValue           = &Error{codeInvalidValue, "invalid value"}
	ErrNotConnected           = &Error{codeNotConnected, "device not connected"}
	ErrInvalidOperation       = &Error{codeInvalidOperation, "invalid operation"}
)

// NewError returns an ASCOM error with the code of base and a specific message.
func NewError(base *Error, format string, args ...any) *Error {
	return &Error{Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

// errorCode maps an error to an ASCOM error number. Errors that are not
// ASCOM errors are reported as driver errors.
func errorCode(err error) (int, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Message
	}
	return codeDriverError, err.Error()
}
