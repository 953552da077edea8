package rate_limiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/xrl-go/xrl/log"
	"go.uber.org/zap"
)

// fixedWindowScript counts admitted requests per key and per clock-aligned
// window, entirely inside the store. The counter key embeds the window start,
// so a fresh counter appears automatically once the server clock crosses a
// boundary, and the old one is reclaimed purely by its TTL.
const fixedWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_size = tonumber(ARGV[2])

local now = tonumber(redis.call("time")[1])
local window_start = math.floor(now / window_size) * window_size
local window_key = key .. ":" .. window_start

local count = tonumber(redis.call("get", window_key)) or 0

if count < limit then
    redis.call("incr", window_key)
    redis.call("expire", window_key, window_size)
    return 0
else
    return 1
end
`

// FixedWindow admits at most limit requests per key within each discrete,
// non-overlapping window of fixed duration, aligned to the store clock.
type FixedWindow struct {
	script *atomicScript
}

// NewFixedWindow registers the fixed window script against the given client.
func NewFixedWindow(client redis.Scripter) *FixedWindow {
	return &FixedWindow{script: newAtomicScript(client, fixedWindowScript)}
}

// TryAcquire attempts to admit one request for key within the current window,
// in a single store round trip. The window must be at least one second and is
// truncated to whole seconds, matching the store clock's resolution. A zero
// limit denies every request.
func (w *FixedWindow) TryAcquire(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	if err := checkFixedWindowParams(limit, window); err != nil {
		return false, err
	}
	allowed, err := w.script.run(ctx, key, limit, windowSeconds(window))
	if err != nil {
		return false, err
	}
	log.Logger().Debug("Fixed window decision",
		zap.String("key", key), zap.Bool("allowed", allowed))
	return allowed, nil
}

// Acquire admits one request for key, sleeping one full window between
// attempts while the current window is exhausted. The sleep is a shortcut,
// not a guarantee of admission on the next attempt: other callers may fill
// the new window first. Retries indefinitely; cancel the context to give up.
// Store errors surface immediately and are never retried.
func (w *FixedWindow) Acquire(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	if err := checkFixedWindowParams(limit, window); err != nil {
		return false, err
	}

	interval := time.Duration(windowSeconds(window)) * time.Second
	return blockUntilAllowed(ctx, interval, func(ctx context.Context) (bool, error) {
		allowed, err := w.script.run(ctx, key, limit, windowSeconds(window))
		if err == nil && !allowed {
			log.Logger().Debug("Window exhausted, waiting for the next one",
				zap.String("key", key), zap.Duration("interval", interval))
		}
		return allowed, err
	})
}

// WindowForRate converts a requests-per-second rate into a window size:
// rates of one or more map to a one-second window, fractional rates to the
// matching multi-second window rounded up, and non-positive rates to an
// arbitrary 60-second default.
//
// Deprecated: the conversion is lossy. Express limits as an explicit
// (limit, window) pair instead.
func WindowForRate(rate float64) time.Duration {
	switch {
	case rate >= 1:
		return time.Second
	case rate > 0:
		return time.Duration(math.Ceil(1/rate)) * time.Second
	default:
		return 60 * time.Second
	}
}

func checkFixedWindowParams(limit int64, window time.Duration) error {
	if limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidParameter, limit)
	}
	if window < time.Second {
		return fmt.Errorf("%w: window must be at least one second, got %s", ErrInvalidParameter, window)
	}
	return nil
}

func windowSeconds(window time.Duration) int64 {
	return int64(window / time.Second)
}
