package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"login-service/internal/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func loginPolicy() Policy {
	return Policy{Name: "login", Limit: 5, Window: 15 * time.Minute}
}

func TestMemoryLimiter_AllowsBurstThenRejects(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := NewMemoryLimiter(loginPolicy(), clk)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, d.Remaining)
		assert.Equal(t, 5, d.Limit)
	}

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.InDelta(t, (3 * time.Minute).Seconds(), d.RetryAfter.Seconds(), 1)

	t.Run("other keys are independent", func(t *testing.T) {
		d, err := l.Allow(ctx, "10.0.0.2")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("refills over time", func(t *testing.T) {
		clk.Advance(3*time.Minute + time.Second)
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		d, err = l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})
}

func TestMemoryLimiter_RejectionDoesNotConsume(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := NewMemoryLimiter(Policy{Name: "recovery", Limit: 1, Window: time.Hour}, clk)
	ctx := context.Background()

	d, _ := l.Allow(ctx, "k")
	require.True(t, d.Allowed)

	for i := 0; i < 10; i++ {
		d, _ = l.Allow(ctx, "k")
		require.False(t, d.Allowed)
	}

	clk.Advance(time.Hour + time.Second)
	d, _ = l.Allow(ctx, "k")
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_SweepsIdleKeys(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := NewMemoryLimiter(Policy{Name: "api", Limit: 10, Window: time.Minute}, clk)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, _ = l.Allow(ctx, k)
	}
	assert.Equal(t, 3, l.size())

	clk.Advance(2 * time.Minute)
	_, _ = l.Allow(ctx, "d")
	assert.Equal(t, 1, l.size())
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(Policy{Name: "api", Limit: 50, Window: time.Hour}, clock.NewFake(epoch))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "shared")
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestPolicy_Normalized(t *testing.T) {
	p := Policy{Name: "x"}.normalized()
	assert.Equal(t, 1, p.Limit)
	assert.Equal(t, time.Minute, p.Window)
}

// fakeCounter mimics Redis INCR with a TTL per key.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCounter) IncrWithExpire(_ context.Context, key string, expiration time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.counts[key]++
	c.ttls[key] = expiration
	return c.counts[key], nil
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	clk := clock.NewFake(epoch)
	counter := newFakeCounter()
	l := NewRedisLimiter(Policy{Name: "recovery", Limit: 3, Window: time.Hour}, counter, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	clk.Advance(15 * time.Minute)
	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 45*time.Minute, d.RetryAfter)

	require.Len(t, counter.counts, 1)
	for key, count := range counter.counts {
		assert.True(t, strings.HasPrefix(key, "rate_limit:recovery:10.0.0.1:"))
		assert.Equal(t, int64(4), count)
		assert.Equal(t, time.Hour, counter.ttls[key])
	}

	clk.Advance(45 * time.Minute)
	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Len(t, counter.counts, 2)
}

func TestRedisLimiter_CounterError(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("connection refused")
	l := NewRedisLimiter(loginPolicy(), counter, clock.NewFake(epoch))

	_, err := l.Allow(context.Background(), "10.0.0.1")
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	l := NewMemoryLimiter(Policy{Name: "login", Limit: 2, Window: time.Minute}, clock.NewFake(epoch))

	var rejected []Decision
	reject := func(w http.ResponseWriter, r *http.Request, d Decision) {
		rejected = append(rejected, d)
		w.WriteHeader(http.StatusTooManyRequests)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(l, zap.NewNop(), reject)(ok)

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1111").Code)
	second := do("10.0.0.1:2222")
	assert.Equal(t, http.StatusNoContent, second.Code)
	assert.Equal(t, "2", second.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := do("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "30", third.Header().Get("Retry-After"))
	require.Len(t, rejected, 1)

	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:1111").Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func (brokenLimiter) Policy() Policy { return loginPolicy() }

func TestMiddleware_FailsOpen(t *testing.T) {
	called := false
	h := Middleware(brokenLimiter{}, zap.NewNop(), func(w http.ResponseWriter, r *http.Request, d Decision) {
		t.Fatal("reject must not be called")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}
