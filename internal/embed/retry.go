package embed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig configures exponential backoff around a transient-failing
// operation.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig matches SPEC_FULL's retry policy for embedder calls:
// base 500ms, factor 2, capped at 8s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}
}

// WithRetry runs fn with exponential backoff, retrying only when fn returns
// an error wrapping ErrEmbedderUnavailable. Any other error (in particular
// ErrEmbedderInputRejected) returns immediately without retrying, matching
// the transient/permanent distinction in spec §4.B.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrEmbedderUnavailable) {
			return err
		}

		lastErr = err
		if attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("embed: failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
