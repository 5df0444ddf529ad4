package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and takes one token atomically. State lives in a
// hash of {tokens, ts}; ts is in milliseconds.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local elapsed = math.max(0, now - ts) / 1000
tokens = math.min(capacity, tokens + elapsed * refill)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, tostring(tokens)}
`)

// RedisLimiter shares buckets across instances through Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ratelimit:", now: time.Now}
}

func (l *RedisLimiter) Take(ctx context.Context, key string, p Policy) (Decision, error) {
	res, err := tokenBucketScript.Run(ctx, l.client,
		[]string{l.prefix + p.Name + ":" + key},
		p.Capacity,
		strconv.FormatFloat(p.RefillPerSecond, 'f', -1, 64),
		l.now().UnixMilli(),
		bucketTTL(p).Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("token bucket script: unexpected reply %v", res)
	}

	allowed, _ := res[0].(int64)
	raw, _ := res[1].(string)
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket script: bad token count %q: %w", raw, err)
	}

	if allowed == 1 {
		return Decision{Allowed: true, Remaining: int64(math.Floor(tokens))}, nil
	}
	return Decision{RetryAfter: retryAfter(tokens, p.RefillPerSecond)}, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// bucketTTL keeps a key around for twice the time a drained bucket needs to refill.
func bucketTTL(p Policy) time.Duration {
	if p.RefillPerSecond <= 0 {
		return time.Hour
	}
	ttl := 2 * time.Duration(float64(p.Capacity)/p.RefillPerSecond*float64(time.Second))
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
