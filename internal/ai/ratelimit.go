package ai

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter proactively spaces outgoing requests below the provider's
// requests-per-minute budget. A nil limiter never blocks.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns nil when requestsPerMinute <= 0.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	interval := time.Minute / time.Duration(requestsPerMinute)
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for llm rate limiter failed: %w", err)
	}
	return nil
}
