// Package retry runs idempotent operations with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration
	// Retryable decides whether a failed attempt is worth repeating. A nil
	// Retryable retries every error.
	Retryable func(error) bool
}

func WithRetry[T any](ctx context.Context, config Config, operation func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		opCtx, cancel := context.WithTimeout(ctx, config.Timeout)
		result, err := operation(opCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if config.Retryable != nil && !config.Retryable(err) {
			log.Debug().Err(err).Int("attempt", attempt+1).Msg("Operation failed with permanent error")
			return zero, err
		}
		if attempt == config.MaxRetries {
			break
		}

		delay := calculateBackoffDelay(attempt, config.BaseDelay, config.MaxDelay)
		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Operation failed, retrying after delay")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// calculateBackoffDelay doubles baseDelay per attempt, caps it at maxDelay and
// applies 0.5x-1.5x jitter without exceeding maxDelay.
func calculateBackoffDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	shift := min(attempt, 30)
	delay := min(time.Duration(1<<shift)*baseDelay, maxDelay)
	if delay <= 0 {
		delay = maxDelay
	}

	jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))
	return min(jittered, maxDelay)
}
