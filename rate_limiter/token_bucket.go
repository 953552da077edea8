package rate_limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/xrl-go/xrl/log"
	"go.uber.org/zap"
)

// tokenBucketScript decides one request entirely inside the store. It refills
// lazily from the stored timestamp using the server clock (second resolution,
// so sub-second bursts within one clock second see no refill), caps at
// capacity, persists the new state under a dynamic TTL and consumes one token
// when at least one is available.
//
// TTL is the time to refill an empty bucket plus a buffer, clamped to
// [60s, 24h]. A zero rate pins it at the maximum since the bucket never
// refills.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])

local tokens_key = key
local timestamp_key = key .. ":timestamp"

local ttl = 86400
if rate > 0 then
    ttl = math.max(60, math.min(86400, math.ceil(capacity / rate) + 300))
end

local values = redis.call("mget", tokens_key, timestamp_key)
local tokens = tonumber(values[1]) or capacity
local timestamp = tonumber(values[2]) or 0

local now = tonumber(redis.call("time")[1])
local elapsed = now - timestamp

tokens = math.min(capacity, tokens + elapsed * rate)

redis.call("mset", tokens_key, tokens, timestamp_key, now)
redis.call("expire", tokens_key, ttl)
redis.call("expire", timestamp_key, ttl)

if tokens >= 1 then
    redis.call("incrbyfloat", tokens_key, -1)
    return 0
else
    return 1
end
`

// TokenBucket admits a request when a per-key bucket, refilled continuously at
// a fixed rate up to a bounded capacity, holds at least one token. All state
// lives in the shared store; any number of processes may limit the same keys
// through their own TokenBucket instances.
type TokenBucket struct {
	script *atomicScript
}

// NewTokenBucket registers the token bucket script against the given client.
func NewTokenBucket(client redis.Scripter) *TokenBucket {
	return &TokenBucket{script: newAtomicScript(client, tokenBucketScript)}
}

// TryAcquire attempts to consume one token for key without blocking beyond a
// single store round trip. capacity is the maximum number of tokens in the
// bucket (fractional values are passed through as-is) and rate the refill in
// tokens per second. Returns false when rate limited; an error means no
// decision was made.
func (b *TokenBucket) TryAcquire(ctx context.Context, key string, capacity, rate float64) (bool, error) {
	if err := checkTokenBucketParams(capacity, rate); err != nil {
		return false, err
	}
	allowed, err := b.script.run(ctx, key, capacity, rate)
	if err != nil {
		return false, err
	}
	log.Logger().Debug("Token bucket decision",
		zap.String("key", key), zap.Bool("allowed", allowed))
	return allowed, nil
}

// Acquire consumes one token for key, waiting 1/rate seconds between attempts
// while the bucket is empty. It retries indefinitely, so it can block forever
// when aggregate demand permanently exceeds rate; cancel the context to give
// up. A denied decision is the only thing retried: store errors surface
// immediately. With rate zero the bucket can never refill, so the call
// degrades to a single non-blocking attempt.
func (b *TokenBucket) Acquire(ctx context.Context, key string, capacity, rate float64) (bool, error) {
	if err := checkTokenBucketParams(capacity, rate); err != nil {
		return false, err
	}
	if rate == 0 {
		return b.script.run(ctx, key, capacity, rate)
	}

	interval := time.Duration(float64(time.Second) / rate)
	return blockUntilAllowed(ctx, interval, func(ctx context.Context) (bool, error) {
		allowed, err := b.script.run(ctx, key, capacity, rate)
		if err == nil && !allowed {
			log.Logger().Debug("Token bucket exhausted, waiting before retry",
				zap.String("key", key), zap.Duration("interval", interval))
		}
		return allowed, err
	})
}

func checkTokenBucketParams(capacity, rate float64) error {
	if capacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative, got %v", ErrInvalidParameter, capacity)
	}
	if rate < 0 {
		return fmt.Errorf("%w: refill rate must not be negative, got %v", ErrInvalidParameter, rate)
	}
	return nil
}
