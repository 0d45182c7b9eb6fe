package app

import (
	"time"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

// RetryPolicy decides whether a failed transport attempt is retried and how
// long to wait before the next attempt. It consumes the transient/terminal
// classification the transport adapters attach to their errors; it never
// inspects error types of its own.
type RetryPolicy struct {
	maxAttempts int
	floor       time.Duration
	cap         time.Duration
}

// NewRetryPolicy creates a policy allowing up to maxAttempts attempts per
// dispatch (including the first) with an exponential backoff bounded by
// [floor, cap]. Non-positive bounds fall back to the compiled defaults;
// maxAttempts below 1 is clamped to 1 (a single attempt, no retries).
func NewRetryPolicy(maxAttempts int, floor, cap time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if floor <= 0 {
		floor = domain.RetryBackoffFloor
	}
	if cap < floor {
		cap = domain.RetryBackoffCap
		if cap < floor {
			cap = floor
		}
	}
	return &RetryPolicy{maxAttempts: maxAttempts, floor: floor, cap: cap}
}

// ShouldRetry reports whether another attempt should follow the given
// 1-based attempt that just failed with err. Terminal and validation
// errors are never retried; the attempt ceiling applies regardless of
// error kind.
func (p *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	return domain.IsTransient(err)
}

// Backoff returns the wait before the attempt following the given 1-based
// failed attempt: floor·2^(attempt−1), capped. The result is non-decreasing
// in attempt, bounded above by the cap, and never zero.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.floor
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.cap {
			return p.cap
		}
	}
	if d > p.cap {
		return p.cap
	}
	return d
}

// MaxAttempts returns the configured attempt ceiling.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}
