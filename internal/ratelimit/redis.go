package ratelimit

import (
	"context"
	"fmt"
	"time"

	"login-service/internal/clock"

	"github.com/samber/oops"
)

const keyPrefix = "rate_limit:"

// Counter is satisfied by client.RedisClient.
type Counter interface {
	IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// RedisLimiter is a fixed-window counter shared by every instance that points
// at the same Redis. Each window gets its own key, so the TTL refresh done by
// IncrWithExpire never extends a window.
type RedisLimiter struct {
	policy  Policy
	counter Counter
	clock   clock.Clock
}

func NewRedisLimiter(policy Policy, counter Counter, clk clock.Clock) *RedisLimiter {
	return &RedisLimiter{policy: policy.normalized(), counter: counter, clock: clk}
}

func (l *RedisLimiter) Policy() Policy {
	return l.policy
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.clock.Now()
	window := int64(l.policy.Window)
	index := now.UnixNano() / window
	windowEnd := time.Unix(0, (index+1)*window)

	redisKey := fmt.Sprintf("%s%s:%s:%d", keyPrefix, l.policy.Name, key, index)
	count, err := l.counter.IncrWithExpire(ctx, redisKey, l.policy.Window)
	if err != nil {
		return Decision{}, oops.Code("RATE_LIMIT_UNAVAILABLE").
			With("policy", l.policy.Name).
			Wrapf(err, "failed to increment rate limit counter")
	}

	remaining := l.policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   count <= int64(l.policy.Limit),
		Limit:     l.policy.Limit,
		Remaining: remaining,
	}
	if !d.Allowed {
		d.RetryAfter = windowEnd.Sub(now)
	}
	return d, nil
}
