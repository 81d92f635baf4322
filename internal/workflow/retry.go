package workflow

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"sceneforge/internal/services"
)

const maxStageAttempts = 3

// stageRetryBaseDelay is a variable so tests can shrink the backoff.
var stageRetryBaseDelay = 2 * time.Second

// withRetry runs fn up to maxStageAttempts times with exponential backoff.
// Only transient errors (timeouts, resets, rate limits) are retried; anything
// else fails on the first attempt.
func withRetry(ctx context.Context, label string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxStageAttempts; attempt++ {
		if attempt > 1 {
			delay := stageBackoff(attempt)
			log.Printf("[Workflow] %s retry %d/%d in %v...", label, attempt, maxStageAttempts, delay)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", label, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				log.Printf("[Workflow] %s succeeded on attempt %d", label, attempt)
			}
			return nil
		}
		if !services.IsRetryableError(lastErr) {
			return lastErr
		}
		log.Printf("[Workflow] %s attempt %d failed (retryable): %v", label, attempt, lastErr)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, maxStageAttempts, lastErr)
}

// stageBackoff: base * 2^(attempt-2) with 0-25% jitter.
func stageBackoff(attempt int) time.Duration {
	delay := float64(stageRetryBaseDelay) * math.Pow(2, float64(attempt-2))
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}
