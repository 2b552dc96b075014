package ratelimit

import (
	"context"
	"sync"
	"time"

	"login-service/internal/clock"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-key token bucket refilled at Limit per Window with a
// burst of Limit. Idle keys are swept on access once per window.
type MemoryLimiter struct {
	policy    Policy
	clock     clock.Clock
	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
}

func NewMemoryLimiter(policy Policy, clk clock.Clock) *MemoryLimiter {
	policy = policy.normalized()
	return &MemoryLimiter{
		policy:    policy,
		clock:     clk,
		entries:   make(map[string]*entry),
		lastSweep: clk.Now(),
	}
}

func (l *MemoryLimiter) Policy() Policy {
	return l.policy
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.clock.Now()
	lim := l.limiterFor(key, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, Limit: l.policy.Limit, RetryAfter: l.policy.Window}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, Limit: l.policy.Limit, RetryAfter: delay}, nil
	}

	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: l.policy.Limit, Remaining: remaining}, nil
}

func (l *MemoryLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.policy.Window {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) >= l.policy.Window {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		every := l.policy.Window / time.Duration(l.policy.Limit)
		e = &entry{limiter: rate.NewLimiter(rate.Every(every), l.policy.Limit)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
