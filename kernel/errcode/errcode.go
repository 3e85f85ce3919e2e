// Package errcode attaches stable codes to parsing, streaming and tool
// errors so callers can branch without matching messages.
package errcode

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable error code.
type ErrorCode string

const (
	ErrorCodeBufferOverflow    ErrorCode = "ERR_BUFFER_OVERFLOW"
	ErrorCodeStreamFailed      ErrorCode = "ERR_STREAM_FAILED"
	ErrorCodeTurnAborted       ErrorCode = "ERR_TURN_ABORTED"
	ErrorCodeTurnBusy          ErrorCode = "ERR_TURN_BUSY"
	ErrorCodeUnknownTool       ErrorCode = "ERR_UNKNOWN_TOOL"
	ErrorCodeNativeArgsInvalid ErrorCode = "ERR_NATIVE_ARGS_INVALID"
	ErrorCodeToolArgsInvalid   ErrorCode = "ERR_TOOL_ARGS_INVALID"
)

// Retryable reports whether the same task can be continued as is. A failed
// stream or a busy runner says nothing about the input; the other codes do.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrorCodeStreamFailed, ErrorCodeTurnBusy:
		return true
	}
	return false
}

// CodedError exposes a stable code for programmatic handling.
type CodedError interface {
	error
	Code() ErrorCode
}

// Error is the CodedError built by New and Wrap.
type Error struct {
	code ErrorCode
	msg  string
	err  error
}

func (e *Error) Error() string {
	switch {
	case e.err == nil:
		return e.msg
	case e.msg == "":
		return e.err.Error()
	}
	return e.msg + ": " + e.err.Error()
}

func (e *Error) Unwrap() error   { return e.err }
func (e *Error) Code() ErrorCode { return e.code }

// Is matches another *Error with the same code, so sentinel values built
// with New work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.msg == "" && t.err == nil && t.code == e.code
}

// New returns an error with code and a formatted message.
func New(code ErrorCode, format string, args ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches code and a message to cause. A nil cause behaves like New.
func Wrap(code ErrorCode, cause error, format string, args ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...), err: cause}
}

// Code returns a bare error carrying only code, for use with errors.Is.
func Code(code ErrorCode) error {
	return &Error{code: code}
}

// Of returns the outermost code in err's chain, or "".
func Of(err error) ErrorCode {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// Is reports whether err carries code.
func Is(err error, code ErrorCode) bool {
	return Of(err) == code
}

// Retryable reports whether err carries a retryable code.
func Retryable(err error) bool {
	return Of(err).Retryable()
}
