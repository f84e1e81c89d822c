// Package backoff implements a small exponential-backoff-with-jitter
// retry loop. It exists because no repository in the reference corpus
// imports a retry/backoff library (warren's worker docs only describe
// the policy in prose); the algorithm itself is a handful of lines.
package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

// DefaultPolicy matches the CDC ingester's "retry transient insert errors
// with exponential backoff up to a bounded number of attempts" rule.
var DefaultPolicy = Policy{
	BaseDelay:  200 * time.Millisecond,
	MaxDelay:   30 * time.Second,
	MaxRetries: 8,
}

// Delay returns the delay to use before retry attempt n (0-indexed),
// full jitter in [0, cappedExponentialDelay).
func (p Policy) Delay(attempt int) time.Duration {
	exp := p.BaseDelay << attempt
	if exp <= 0 || exp > p.MaxDelay {
		exp = p.MaxDelay
	}
	if exp <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(exp)))
}

// Retry invokes fn until it succeeds, the policy's retry budget is
// exhausted, or ctx is cancelled. The last error is returned on exhaustion.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
