// Package ratelimit throttles API calls per client key (normally the IP).
package ratelimit

import (
	"context"
	"time"
)

// Policy allows Limit requests per Window for each key.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Policy() Policy
}

func (p Policy) normalized() Policy {
	if p.Limit < 1 {
		p.Limit = 1
	}
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	return p
}
