package transctl

import (
	"context"
	"errors"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns sensible defaults for retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// delay returns the backoff before retry number attempt (0-based). A delay
// requested by the provider wins over the exponential schedule but is still
// capped by MaxDelay.
func (c RetryConfig) delay(attempt int, err error) time.Duration {
	d := c.BaseDelay * time.Duration(1<<attempt)
	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.RetryAfter > 0 {
		d = providerErr.RetryAfter
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func() (T, error)

// WithRetry executes a function with exponential backoff retry.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) || attempt >= cfg.MaxRetries {
			return zero, err
		}

		timer := time.NewTimer(cfg.delay(attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// IsRetryable checks if an error is retryable. Only a ProviderError marked
// Retryable qualifies; context errors never do.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return false
}

// RetryableTranslator wraps a Translator with retry logic. The pipeline
// never retries on its own; wrap the provider with this to get retries.
type RetryableTranslator struct {
	translator Translator
	config     RetryConfig
}

var _ Translator = (*RetryableTranslator)(nil)

// NewRetryableTranslator creates a new translator with retry logic.
func NewRetryableTranslator(t Translator, cfg RetryConfig) *RetryableTranslator {
	return &RetryableTranslator{
		translator: t,
		config:     cfg,
	}
}

// Translate implements Translator with retry logic.
func (r *RetryableTranslator) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	return WithRetry(ctx, r.config, func() (string, error) {
		return r.translator.Translate(ctx, req)
	})
}
