package transctl

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	RequestsPerMinute int // Maximum requests per minute (default: 60)
	BurstSize         int // Maximum burst size (default: same as RPM)
}

// RateLimiter is a token bucket shared by every request sent through it.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter with a full bucket.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = rpm
	}
	every := time.Minute / time.Duration(rpm)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(every), burst)}
}

// Wait blocks until a token is available. It fails early when ctx would
// expire before then.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// TryAcquire takes a token if one is available, without blocking.
func (r *RateLimiter) TryAcquire() bool {
	return r.limiter.Allow()
}

// Available returns the current number of tokens in the bucket.
func (r *RateLimiter) Available() float64 {
	return r.limiter.Tokens()
}

// RateLimitedTranslator delays requests to stay under a provider quota.
type RateLimitedTranslator struct {
	translator Translator
	limiter    *RateLimiter
}

var _ Translator = (*RateLimitedTranslator)(nil)

// NewRateLimitedTranslator wraps t with a limiter built from cfg.
func NewRateLimitedTranslator(t Translator, cfg RateLimitConfig) *RateLimitedTranslator {
	return &RateLimitedTranslator{
		translator: t,
		limiter:    NewRateLimiter(cfg),
	}
}

// Translate waits for a token, then forwards req.
func (r *RateLimitedTranslator) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &ProviderError{Message: "rate limit wait cancelled", Cause: err}
	}
	return r.translator.Translate(ctx, req)
}

// Limiter returns the underlying rate limiter.
func (r *RateLimitedTranslator) Limiter() *RateLimiter {
	return r.limiter
}
