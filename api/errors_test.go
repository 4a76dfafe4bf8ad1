package api

import (
	"errors"
	"testing"

	"github.com/ulala-x/serverlink/internal/socket"
)

func TestErrorIsComparesOnlyCode(t *testing.T) {
	e1 := newError(ErrCodeAgain, "send", nil)
	if !errors.Is(e1, ErrAgain) {
		t.Fatalf("errors.Is(e1, ErrAgain) = false, want true")
	}
	if errors.Is(e1, ErrTerminated) {
		t.Fatalf("errors.Is(e1, ErrTerminated) = true, want false")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := newError(ErrCodeProtocolError, "recv", cause)
	if !errors.Is(e, cause) {
		t.Fatalf("errors.Is(e, cause) = false, want true")
	}
}

func TestMapSocketErr(t *testing.T) {
	cases := []struct {
		in   error
		want ErrorCode
	}{
		{socket.ErrAgain, ErrCodeAgain},
		{socket.ErrHostUnreachable, ErrCodeHostUnreachable},
		{socket.ErrTerminated, ErrCodeTerminated},
		{socket.ErrNotSupported, ErrCodeInvalidArgument},
	}
	for _, tc := range cases {
		err := mapSocketErr("op", tc.in)
		se, ok := err.(*Error)
		if !ok {
			t.Fatalf("mapSocketErr(%v) did not return *Error", tc.in)
		}
		if se.Code != tc.want {
			t.Fatalf("mapSocketErr(%v).Code = %v, want %v", tc.in, se.Code, tc.want)
		}
	}
}
