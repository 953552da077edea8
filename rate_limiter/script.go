package rate_limiter

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/xrl-go/xrl/log"
	"go.uber.org/zap"
)

// Decision sentinels returned by the Lua scripts. Anything else is an error.
const (
	decisionAllowed = 0
	decisionDenied  = 1
)

// atomicScript wraps one registered Lua script. The whole read-modify-write
// of a decision runs inside the store, so concurrent callers anywhere in the
// fleet never observe partial state. go-redis runs EVALSHA first and falls
// back to EVAL on NOSCRIPT, which makes registration idempotent: any number
// of limiter instances may share one store and one script.
type atomicScript struct {
	client redis.Scripter
	script *redis.Script
}

func newAtomicScript(client redis.Scripter, src string) *atomicScript {
	return &atomicScript{
		client: client,
		script: redis.NewScript(src),
	}
}

// run executes the script for key and maps the sentinel reply to a boolean
// decision. Store and script failures propagate as errors; they are never
// folded into an allow or a deny.
func (s *atomicScript) run(ctx context.Context, key string, args ...interface{}) (bool, error) {
	reply, err := s.script.Run(ctx, s.client, []string{key}, args...).Result()
	if err != nil {
		log.Logger().Error("Failed to execute rate limit script",
			zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("run rate limit script: %w", err)
	}

	decision, ok := reply.(int64)
	if !ok {
		return false, fmt.Errorf("%w: %v", ErrUnexpectedReply, reply)
	}

	switch decision {
	case decisionAllowed:
		return true, nil
	case decisionDenied:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnexpectedReply, decision)
	}
}
