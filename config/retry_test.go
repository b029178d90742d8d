package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryDelay(1))
	assert.Equal(t, 16*time.Second, retryDelay(4))
	assert.Equal(t, maxRetryDelay, retryDelay(5))
	assert.Equal(t, maxRetryDelay, retryDelay(40))
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := retry(context.Background(), "test", 1, func(int) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetry_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry(ctx, "test", 0, func(int) error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_ReturnsOnFirstSuccess(t *testing.T) {
	var seen []int
	err := retry(context.Background(), "test", 3, func(attempt int) error {
		seen = append(seen, attempt)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []int{1}, seen)
}
