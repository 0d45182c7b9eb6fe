package app

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// RateLimiter bounds the number of simultaneous in-flight transport calls
// for one channel. It is a concurrency limiter, not a request-per-second
// limiter: Acquire suspends the caller until a permit is free rather than
// rejecting.
//
// Each ChannelDispatcher owns exactly one instance; capacity is a static
// per-channel configuration value.
type RateLimiter struct {
	sem      *semaphore.Weighted
	capacity int
}

// NewRateLimiter creates a limiter admitting up to capacity concurrent
// holders. A capacity below 1 is clamped to 1.
func NewRateLimiter(capacity int) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	return &RateLimiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a permit is available or ctx is cancelled.
// Every successful Acquire must be paired with exactly one Release on
// every exit path — the dispatcher defers the Release immediately.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// TryAcquire acquires a permit without blocking, reporting success.
func (l *RateLimiter) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

// Release returns a permit.
func (l *RateLimiter) Release() {
	l.sem.Release(1)
}

// Capacity returns the configured permit count.
func (l *RateLimiter) Capacity() int {
	return l.capacity
}
