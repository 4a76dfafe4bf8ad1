// api/errors.go
//
// Structured error type and the ten public error kinds of ZMTP,
// grounded on internal/socket and internal/ctxcore's sentinel errors.

package api

import (
	"errors"
	"fmt"

	"github.com/ulala-x/serverlink/internal/ctxcore"
	"github.com/ulala-x/serverlink/internal/socket"
)

// ErrorCode enumerates the public error kinds ZMTP documents.
type ErrorCode int

const (
	ErrCodeInvalidArgument ErrorCode = iota + 1
	ErrCodeOutOfMemory
	ErrCodeAgain
	ErrCodeNotASocket
	ErrCodeProtocolError
	ErrCodeTerminated
	ErrCodeNoIOThread
	ErrCodeHostUnreachable
	ErrCodeNotReady
	ErrCodeAuthFailed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeInvalidArgument:
		return "invalid-argument"
	case ErrCodeOutOfMemory:
		return "out-of-memory"
	case ErrCodeAgain:
		return "again"
	case ErrCodeNotASocket:
		return "not-a-socket"
	case ErrCodeProtocolError:
		return "protocol-error"
	case ErrCodeTerminated:
		return "terminated"
	case ErrCodeNoIOThread:
		return "no-io-thread"
	case ErrCodeHostUnreachable:
		return "host-unreachable"
	case ErrCodeNotReady:
		return "not-ready"
	case ErrCodeAuthFailed:
		return "auth-failed"
	default:
		return "unknown"
	}
}

// Error is the structured error every public operation returns on failure.
type Error struct {
	Code ErrorCode
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serverlink: %s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("serverlink: %s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target has the same ErrorCode, supporting
// errors.Is(err, api.ErrAgain) style comparisons against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Err: cause}
}

// Sentinels for errors.Is comparisons; their Msg/Err fields are irrelevant
// to equality since *Error.Is only compares Code.
var (
	ErrInvalidArgument = &Error{Code: ErrCodeInvalidArgument}
	ErrOutOfMemory     = &Error{Code: ErrCodeOutOfMemory}
	ErrAgain           = &Error{Code: ErrCodeAgain}
	ErrNotASocket      = &Error{Code: ErrCodeNotASocket}
	ErrProtocolError   = &Error{Code: ErrCodeProtocolError}
	ErrTerminated      = &Error{Code: ErrCodeTerminated}
	ErrNoIOThread      = &Error{Code: ErrCodeNoIOThread}
	ErrHostUnreachable = &Error{Code: ErrCodeHostUnreachable}
	ErrNotReady        = &Error{Code: ErrCodeNotReady}
	ErrAuthFailed       = &Error{Code: ErrCodeAuthFailed}
)

// mapSocketErr translates internal/socket and internal/ctxcore sentinels
// into the public Error taxonomy, matching ZMTP's failure kinds.
func mapSocketErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, socket.ErrAgain):
		return newError(ErrCodeAgain, op, err)
	case errors.Is(err, socket.ErrHostUnreachable):
		return newError(ErrCodeHostUnreachable, op, err)
	case errors.Is(err, socket.ErrTerminated):
		return newError(ErrCodeTerminated, op, err)
	case errors.Is(err, socket.ErrNotSupported):
		return newError(ErrCodeInvalidArgument, op, err)
	case errors.Is(err, ctxcore.ErrTerminated):
		return newError(ErrCodeTerminated, op, err)
	case errors.Is(err, ctxcore.ErrTooManySockets):
		return newError(ErrCodeInvalidArgument, op, err)
	case errors.Is(err, ctxcore.ErrAddrInUse):
		return newError(ErrCodeInvalidArgument, op, err)
	case errors.Is(err, ctxcore.ErrEndpointNotFound):
		return newError(ErrCodeInvalidArgument, op, err)
	default:
		return newError(ErrCodeProtocolError, op, err)
	}
}
