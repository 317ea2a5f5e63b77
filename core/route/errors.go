package route

import (
	"errors"
	"fmt"
)

// Code classifies navigation failures.
type Code int

const (
	CodeUnknown Code = iota
	CodeInvalidRouteKey
	CodeAddRouteTimeout
	CodePushFailed
	CodePopFailed
	CodeCommandFailed
	CodeInvalidArguments
	CodeRouteOutOfBounds
	CodeLibraryError
	CodeCommandDropped
	CodeClosed
)

var codeNames = map[Code]string{
	CodeUnknown:          "unknown",
	CodeInvalidRouteKey:  "invalid route key",
	CodeAddRouteTimeout:  "add route timeout",
	CodePushFailed:       "push failed",
	CodePopFailed:        "pop failed",
	CodeCommandFailed:    "command failed",
	CodeInvalidArguments: "invalid arguments",
	CodeRouteOutOfBounds: "route out of bounds",
	CodeLibraryError:     "library error",
	CodeCommandDropped:   "command dropped",
	CodeClosed:           "navigator closed",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Sentinels for errors.Is. They match any *Error carrying the same code.
var (
	ErrInvalidRouteKey  = &Error{Code: CodeInvalidRouteKey}
	ErrAddRouteTimeout  = &Error{Code: CodeAddRouteTimeout}
	ErrPushFailed       = &Error{Code: CodePushFailed}
	ErrPopFailed        = &Error{Code: CodePopFailed}
	ErrCommandFailed    = &Error{Code: CodeCommandFailed}
	ErrInvalidArguments = &Error{Code: CodeInvalidArguments}
	ErrRouteOutOfBounds = &Error{Code: CodeRouteOutOfBounds}
	ErrLibraryError     = &Error{Code: CodeLibraryError}
	ErrCommandDropped   = &Error{Code: CodeCommandDropped}
	ErrClosed           = &Error{Code: CodeClosed}
)

// Error is the single error type returned by navigation commands.
type Error struct {
	Code   Code
	Op     string // command that failed, e.g. "push"
	Detail string
	Err    error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := "routesync: " + e.Code.String()
	if e.Op != "" {
		msg = "routesync: " + e.Op + ": " + e.Code.String()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code so that callers can test against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError builds an *Error with an optional formatted detail.
func NewError(code Code, op string, err error, format string, args ...any) *Error {
	e := &Error{Code: code, Op: op, Err: err}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}
	return e
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
