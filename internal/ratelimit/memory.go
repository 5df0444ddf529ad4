package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultMaxKeys bounds the number of live buckets held by a Registry.
const DefaultMaxKeys = 10000

// Registry is an in-process Limiter. Buckets are created lazily per
// policy and key and evicted least-recently-used once the bound is reached.
type Registry struct {
	buckets *lru.Cache[string, *rate.Limiter]
	now     func() time.Time
}

type RegistryOption func(*Registry)

// WithClock overrides the time source used for refills.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(maxKeys int, opts ...RegistryOption) (*Registry, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	cache, err := lru.New[string, *rate.Limiter](maxKeys)
	if err != nil {
		return nil, fmt.Errorf("bucket registry: %w", err)
	}
	r := &Registry{buckets: cache, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Registry) Take(_ context.Context, key string, p Policy) (Decision, error) {
	now := r.now()
	bucket := r.bucket(p.Name+"|"+key, p)

	if bucket.AllowN(now, 1) {
		return Decision{
			Allowed:   true,
			Remaining: int64(math.Floor(bucket.TokensAt(now))),
		}, nil
	}
	return Decision{
		Allowed:    false,
		RetryAfter: retryAfter(bucket.TokensAt(now), p.RefillPerSecond),
	}, nil
}

// Len reports the number of live buckets.
func (r *Registry) Len() int {
	return r.buckets.Len()
}

func (r *Registry) bucket(id string, p Policy) *rate.Limiter {
	if b, ok := r.buckets.Get(id); ok {
		return b
	}
	fresh := rate.NewLimiter(rate.Limit(p.RefillPerSecond), p.Capacity)
	prev, found, _ := r.buckets.PeekOrAdd(id, fresh)
	if found {
		return prev
	}
	return fresh
}
