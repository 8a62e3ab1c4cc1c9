package openai

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/internal/llm"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.MaxRetries < 0 {
		r.MaxRetries = 0
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = time.Second
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = 30 * time.Second
	}
	return r
}

// backoff is InitialBackoff * 2^attempt, capped at MaxBackoff.
func (r RetryConfig) backoff(attempt int) time.Duration {
	d := float64(r.InitialBackoff) * math.Pow(2, float64(attempt))
	if d > float64(r.MaxBackoff) {
		d = float64(r.MaxBackoff)
	}
	return time.Duration(d)
}

func shouldRetry(err error) bool {
	var se *llm.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// transport errors (connection refused, reset) are retried; context errors are not.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// withRetry calls fn until it succeeds, fails permanently, or runs out of attempts.
func (c *Client) withRetry(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := fn()
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !shouldRetry(err) || attempt == c.cfg.Retry.MaxRetries {
			break
		}

		wait := c.cfg.Retry.backoff(attempt)
		c.log.Warn("llm.openai.retry",
			"attempt", attempt+1,
			"max_retries", c.cfg.Retry.MaxRetries,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, lastErr
}
