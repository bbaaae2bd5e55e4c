package enrich

import (
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultCooldown   = 4 * time.Second
	DefaultRetryBase  = 12 * time.Second
	DefaultRetryStep  = 2 * time.Second
	DefaultMaxRetries = 3
)

// RetryPolicy describes the wait before each retry of a rate-limited request:
// BaseDelay + retry*Step for retry = 0..MaxRetries-1.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Step       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultRetryBase, Step: DefaultRetryStep}
}

func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	return p.BaseDelay + time.Duration(retry)*p.Step
}

// Backoff returns a fresh backoff sequence for one item. It yields exactly
// MaxRetries delays and then stops.
func (p RetryPolicy) Backoff() retry.Backoff {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	attempt := 0
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		d := p.Delay(attempt)
		attempt++
		return d, false
	})
	return retry.WithMaxRetries(uint64(maxRetries), linear)
}
