package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type RetryConfig struct {
	MaxAttempts int
	Delay       func(attempt int) time.Duration // delay after failed attempt n (1-based)
	Sleep       SleepFunc
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       ExponentialDelay(500 * time.Millisecond),
		Sleep:       ContextSleep,
	}
}

// FixedRetryConfig retries up to attempts times waiting delay between tries
func FixedRetryConfig(attempts int, delay time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		Delay:       FixedDelay(delay),
		Sleep:       ContextSleep,
	}
}

func FixedDelay(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

func ExponentialDelay(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(1<<uint(attempt-1))
	}
}

func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryWithBackoff runs fn until it succeeds or cfg.MaxAttempts is reached.
func RetryWithBackoff(ctx context.Context, fn func() error, cfg RetryConfig) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Sleep == nil {
		cfg.Sleep = ContextSleep
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		var wait time.Duration
		if cfg.Delay != nil {
			wait = cfg.Delay(attempt)
		}
		if err := cfg.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, cfg.MaxAttempts, lastErr)
}
