package config

import (
	"context"
	"log"
	"time"
)

const maxRetryDelay = 30 * time.Second

// retryDelay doubles from 2s and is capped at maxRetryDelay.
func retryDelay(attempt int) time.Duration {
	return min(time.Second*time.Duration(1<<min(attempt, 5)), maxRetryDelay)
}

// retry calls connect until it succeeds, ctx is done or maxAttempts (0 = unlimited)
// is reached. It returns the last connect error.
func retry(ctx context.Context, what string, maxAttempts int, connect func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := connect(attempt)
		if err == nil {
			log.Printf("%s ready (attempt=%d)", what, attempt)
			return nil
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return err
		}
		delay := retryDelay(attempt)
		log.Printf("%s failed (attempt=%d): %v; retrying in %s", what, attempt, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
