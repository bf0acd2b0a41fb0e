package a2a

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want string
	}{
		{"no cause", NewError(KindValidation, "bad input"), "validation: bad input"},
		{"with cause", Wrap(KindTransient, "dial failed", fmt.Errorf("connection refused")), "transient: dial failed: connection refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(KindHandler, "handler panicked", cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"direct *Error", NewError(KindCapacity, "outbox full"), KindCapacity},
		{"wrapped *Error", fmt.Errorf("context: %w", NewError(KindAuth, "401")), KindAuth},
		{"plain error", fmt.Errorf("unclassified"), KindHandler},
		{"nil", nil, KindHandler},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKindOfDeepChain(t *testing.T) {
	inner := NewError(KindNotFound, "skill missing")
	wrapped := fmt.Errorf("dispatch: %w", fmt.Errorf("execute: %w", inner))
	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("KindOf() = %q, want %q", got, KindNotFound)
	}
}
