// Package ratelimit provides the token-bucket limiters and per-command
// invocation counters used by the session manager and its façade.
package ratelimit

import (
	"golang.org/x/time/rate"

	serrors "github.com/opd-ai/go-tor/pkg/errors"
)

// Limiter is a named token bucket configured as N tokens per minute.
// Exceeding it is signaled as a RateLimitExceeded error carrying the
// limiter's operation name.
type Limiter struct {
	op      string
	limiter *rate.Limiter
}

// NewLimiter builds a Limiter allowing perMinute operations per minute,
// with a burst equal to perMinute so a caller can spend a full minute's
// budget immediately after construction.
func NewLimiter(op string, perMinute int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &Limiter{
		op:      op,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

// Allow reports whether a token is available without consuming one
// when unavailable; it consumes a token when one is available.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Take consumes a token or returns RateLimitExceeded(op).
func (l *Limiter) Take() error {
	if !l.limiter.Allow() {
		return serrors.RateLimitExceeded(l.op)
	}
	return nil
}
