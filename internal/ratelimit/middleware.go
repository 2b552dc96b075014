package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"login-service/internal/util"

	"go.uber.org/zap"
)

// RejectFunc writes the response for a request over the limit.
type RejectFunc func(w http.ResponseWriter, r *http.Request, d Decision)

// Middleware applies l per client IP. It runs after middleware.RealIP, so
// RemoteAddr already holds the forwarded address when a proxy set one. A
// limiter error lets the request through.
func Middleware(l Limiter, logger *zap.Logger, reject RejectFunc) func(http.Handler) http.Handler {
	policy := l.Policy()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)

			d, err := l.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter unavailable, allowing request",
					util.String("policy", policy.Name),
					util.ErrorField(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				logger.Warn("Rate limit exceeded",
					util.String("policy", policy.Name),
					util.String("client_ip", key),
					util.String("path", r.URL.Path),
				)
				reject(w, r, d)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
