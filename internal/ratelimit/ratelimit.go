package ratelimit

import (
	"context"
	"time"
)

// Policy is a token bucket shape: Capacity tokens, refilled continuously at
// RefillPerSecond.
type Policy struct {
	Name            string
	Capacity        int
	RefillPerSecond float64
}

// PerMinute builds a policy that refills refill tokens every minute.
func PerMinute(name string, capacity, refill int) Policy {
	return Policy{Name: name, Capacity: capacity, RefillPerSecond: float64(refill) / 60}
}

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// RetryAfterSeconds is the whole-second wait before a token is available.
func (d Decision) RetryAfterSeconds() int64 {
	return int64(d.RetryAfter / time.Second)
}

// Limiter consumes one token from the bucket for key under policy p.
type Limiter interface {
	Take(ctx context.Context, key string, p Policy) (Decision, error)
}

// retryAfter is how long until one token accrues from tokens at refill/s.
func retryAfter(tokens, refillPerSecond float64) time.Duration {
	if tokens >= 1 || refillPerSecond <= 0 {
		return 0
	}
	return time.Duration((1 - tokens) / refillPerSecond * float64(time.Second))
}
