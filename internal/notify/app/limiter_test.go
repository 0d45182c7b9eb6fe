package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/notification-dispatch/internal/notify/app"
)

func TestRateLimiter(t *testing.T) {
	t.Run("admits up to capacity without blocking", func(t *testing.T) {
		l := app.NewRateLimiter(3)

		for i := 0; i < 3; i++ {
			assert.True(t, l.TryAcquire(), "permit %d should be free", i)
		}
		assert.False(t, l.TryAcquire(), "capacity exceeded, must not admit")
	})

	t.Run("release frees a permit", func(t *testing.T) {
		l := app.NewRateLimiter(1)

		require.True(t, l.TryAcquire())
		assert.False(t, l.TryAcquire())

		l.Release()
		assert.True(t, l.TryAcquire())
	})

	t.Run("acquire blocks until a holder releases", func(t *testing.T) {
		l := app.NewRateLimiter(1)
		require.NoError(t, l.Acquire(context.Background()))

		acquired := make(chan struct{})
		go func() {
			if err := l.Acquire(context.Background()); err == nil {
				close(acquired)
			}
		}()

		select {
		case <-acquired:
			t.Fatal("second acquire should block while the permit is held")
		case <-time.After(50 * time.Millisecond):
		}

		l.Release()

		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("acquire did not resume after release")
		}
		l.Release()
	})

	t.Run("acquire honours context cancellation", func(t *testing.T) {
		l := app.NewRateLimiter(1)
		require.NoError(t, l.Acquire(context.Background()))
		defer l.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := l.Acquire(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("capacity below one is clamped", func(t *testing.T) {
		l := app.NewRateLimiter(0)

		assert.Equal(t, 1, l.Capacity())
		assert.True(t, l.TryAcquire())
		assert.False(t, l.TryAcquire())
	})
}
