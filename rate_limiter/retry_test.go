package rate_limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlockUntilAllowed_RetriesDenialsUntilAllowed(t *testing.T) {
	attempts := 0
	allowed, err := blockUntilAllowed(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		attempts++
		return attempts >= 3, nil
	})

	assert.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 3, attempts)
}

func TestBlockUntilAllowed_ErrorsAreNotRetried(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	allowed, err := blockUntilAllowed(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		attempts++
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, allowed)
	assert.Equal(t, 1, attempts, "a store error must surface immediately")
}

func TestBlockUntilAllowed_StopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := blockUntilAllowed(ctx, time.Minute, func(context.Context) (bool, error) {
			return false, nil
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("retry loop did not stop on cancellation")
	}
}

func TestBlockUntilAllowed_WaitsBetweenAttempts(t *testing.T) {
	attempts := 0
	start := time.Now()
	_, err := blockUntilAllowed(context.Background(), 20*time.Millisecond, func(context.Context) (bool, error) {
		attempts++
		return attempts >= 2, nil
	})

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
