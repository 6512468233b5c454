package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSessionErrorIs(t *testing.T) {
	a := NotConnected()
	b := NotConnected()
	if !errors.Is(a, b) {
		t.Fatalf("expected two NotConnected errors to compare equal under errors.Is")
	}

	c := AlreadyConnected()
	if errors.Is(a, c) {
		t.Fatalf("expected NotConnected and AlreadyConnected to compare unequal")
	}
}

func TestSessionErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	wrapped := ConnectionFailed(StepBootstrap, "bootstrap timed out", cause)

	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected wrapped error to unwrap to cause")
	}
	if !IsRetryable(wrapped) {
		t.Fatalf("expected ConnectionFailed to be retryable")
	}
}

func TestRateLimitExceededMessage(t *testing.T) {
	err := RateLimitExceeded("connect")
	want := "rate limit exceeded: connect"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(PreferenceUnsatisfiable()); got != KindPreferenceUnsatisfiable {
		t.Fatalf("KindOf() = %q, want %q", got, KindPreferenceUnsatisfiable)
	}
	if got := KindOf(fmt.Errorf("plain error")); got != "" {
		t.Fatalf("KindOf() on a non-SessionError = %q, want empty", got)
	}
}

func TestIsRetryableFalseForNonRetryableKinds(t *testing.T) {
	for _, err := range []*SessionError{
		NotConnected(),
		AlreadyConnected(),
		RateLimitExceeded("logs"),
		BridgeParseError("bad line"),
		LookupError("no match"),
		IOError("write failed", nil),
	} {
		if IsRetryable(err) {
			t.Errorf("expected %v to be non-retryable", err.Kind)
		}
	}
}
