package app

import (
	"sync"
	"time"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

// CircuitBreaker is a per-channel failure-rate gate. It opens after
// threshold consecutive recorded failures and stays open until openDuration
// has elapsed since the last failure; the cool-down reset is lazy, performed
// inside IsOpen under the same lock as the record methods (no background
// timer). State never persists across restarts — a new breaker is closed.
//
// Each ChannelDispatcher owns exactly one instance; breakers are never
// shared across channels.
type CircuitBreaker struct {
	mu           sync.Mutex
	threshold    int
	openDuration time.Duration
	clock        domain.Clock

	failureCount int
	lastFailure  time.Time
}

// NewCircuitBreaker creates a closed breaker. A threshold below 1 is
// clamped to 1; a non-positive openDuration falls back to the compiled
// default.
func NewCircuitBreaker(threshold int, openDuration time.Duration, clock domain.Clock) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	if openDuration <= 0 {
		openDuration = domain.DefaultBreakerOpenDuration
	}
	return &CircuitBreaker{
		threshold:    threshold,
		openDuration: openDuration,
		clock:        clock,
	}
}

// IsOpen reports whether the breaker is rejecting calls. When the cool-down
// has elapsed it resets the failure count as a side effect, atomically with
// the check.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failureCount < b.threshold || b.lastFailure.IsZero() {
		return false
	}
	if b.clock.Now().Sub(b.lastFailure) < b.openDuration {
		return true
	}

	// Cool-down elapsed: lazy reset.
	b.failureCount = 0
	b.lastFailure = time.Time{}
	return false
}

// RecordFailure increments the failure count and stamps the failure time.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailure = b.clock.Now()
}

// RecordSuccess closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.lastFailure = time.Time{}
}

// FailureCount returns the current consecutive failure count.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
