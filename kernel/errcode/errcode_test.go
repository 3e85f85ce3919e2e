package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCode_New(t *testing.T) {
	err := New(ErrorCodeTurnBusy, "turn %q busy", "t1")
	if !Is(err, ErrorCodeTurnBusy) {
		t.Fatalf("expected turn busy code, got %q", Of(err))
	}
	if err.Error() != `turn "t1" busy` {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestErrorCode_WrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", Wrap(ErrorCodeStreamFailed, cause, "stream"))
	if !Is(err, ErrorCodeStreamFailed) {
		t.Fatalf("expected wrapped stream failed code, got %q", Of(err))
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to stay reachable through errors.Is")
	}
	if err.Error() != "outer: stream: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestErrorCode_WrapNilCause(t *testing.T) {
	err := Wrap(ErrorCodeUnknownTool, nil, "tool %s", "x")
	if !Is(err, ErrorCodeUnknownTool) {
		t.Fatalf("expected unknown tool code, got %q", Of(err))
	}
	if errors.Unwrap(err) != nil {
		t.Fatal("expected no cause")
	}
}

func TestErrorCode_OfPlainError(t *testing.T) {
	if Of(errors.New("plain")) != "" {
		t.Fatal("expected empty code for plain error")
	}
	if Of(nil) != "" {
		t.Fatal("expected empty code for nil")
	}
}

func TestErrorCode_ErrorsIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("run: %w", Wrap(ErrorCodeStreamFailed, errors.New("reset"), "stream"))
	if !errors.Is(err, Code(ErrorCodeStreamFailed)) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(err, Code(ErrorCodeTurnAborted)) {
		t.Fatal("expected a different code not to match")
	}
}

func TestRetryable(t *testing.T) {
	cases := map[ErrorCode]bool{
		ErrorCodeStreamFailed:      true,
		ErrorCodeTurnBusy:          true,
		ErrorCodeTurnAborted:       false,
		ErrorCodeBufferOverflow:    false,
		ErrorCodeNativeArgsInvalid: false,
		"":                         false,
	}
	for code, want := range cases {
		if got := code.Retryable(); got != want {
			t.Fatalf("%q.Retryable() = %v, want %v", code, got, want)
		}
	}
	if !Retryable(fmt.Errorf("x: %w", New(ErrorCodeStreamFailed, "eof"))) {
		t.Fatal("expected wrapped stream failure to be retryable")
	}
	if Retryable(errors.New("plain")) {
		t.Fatal("expected plain error not to be retryable")
	}
}
