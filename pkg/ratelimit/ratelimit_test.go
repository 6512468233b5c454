package ratelimit

import (
	"errors"
	"testing"
	"time"

	serrors "github.com/opd-ai/go-tor/pkg/errors"
)

func TestLimiterExhaustsBurstThenRejects(t *testing.T) {
	l := NewLimiter("connect", 5)

	for i := 0; i < 5; i++ {
		if err := l.Take(); err != nil {
			t.Fatalf("Take() #%d: unexpected error %v", i, err)
		}
	}
	err := l.Take()
	if !errors.Is(err, serrors.RateLimitExceeded("connect")) {
		t.Fatalf("expected RateLimitExceeded after burst exhausted, got %v", err)
	}
}

func TestInvocationCountersResetAfterWindow(t *testing.T) {
	c := NewInvocationCounters()
	c.Record("get_logs")
	c.Record("get_logs")

	start, count := c.Snapshot("get_logs")
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if start.IsZero() {
		t.Fatal("expected non-zero window start")
	}

	// Age the window past InvocationWindow; the next Record starts a new one.
	c.windows["get_logs"].start = time.Now().Add(-2 * InvocationWindow)
	c.Record("get_logs")
	if _, count := c.Snapshot("get_logs"); count != 1 {
		t.Fatalf("count after window reset = %d, want 1", count)
	}
}

func TestInvocationCountersUnknownOp(t *testing.T) {
	c := NewInvocationCounters()
	start, count := c.Snapshot("never_called")
	if count != 0 || !start.IsZero() {
		t.Fatalf("expected zero-value snapshot for unrecorded op, got start=%v count=%d", start, count)
	}
}

func TestInvocationWindowConstant(t *testing.T) {
	if InvocationWindow != 60*time.Second {
		t.Fatalf("InvocationWindow = %v, want 60s", InvocationWindow)
	}
}
