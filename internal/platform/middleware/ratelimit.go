package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/juju/ratelimit"
	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int64
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// exportCost is charged for requests that render a document.
const exportCost = 10

// requestCost returns the number of tokens a request consumes.
func requestCost(c echo.Context) int64 {
	p := c.Request().URL.Path
	switch {
	case strings.HasPrefix(p, "/health"), p == "/metrics":
		return 0
	case strings.HasSuffix(p, "/export.pdf"), strings.HasSuffix(p, "/export.xlsx"),
		c.Request().Method == http.MethodPost && strings.HasSuffix(p, "/exports"):
		return exportCost
	}
	return 1
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.RWMutex
	buckets map[string]*ratelimit.Bucket
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.BurstSize < 1 {
		cfg.BurstSize = 1
	}
	return &RateLimiter{cfg: cfg, buckets: make(map[string]*ratelimit.Bucket)}
}

func (rl *RateLimiter) bucket(key string) *ratelimit.Bucket {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets[key]; ok {
		return b
	}
	b = ratelimit.NewBucketWithRate(rl.cfg.RequestsPerSecond, rl.cfg.BurstSize)
	rl.buckets[key] = b
	return b
}

// Prune drops buckets that have refilled completely and returns how many
// were removed.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for k, b := range rl.buckets {
		if b.Available() == b.Capacity() {
			delete(rl.buckets, k)
			n++
		}
	}
	return n
}

// Middleware rejects requests with 429 once the client's bucket cannot pay
// for them.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	limit := strconv.FormatFloat(rl.cfg.RequestsPerSecond, 'f', 0, 64)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rl.cfg.RequestsPerSecond <= 0 {
				return next(c)
			}
			cost := requestCost(c)
			if cost == 0 {
				return next(c)
			}

			b := rl.bucket(c.RealIP())
			if cost > b.Capacity() {
				cost = b.Capacity()
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if b.TakeAvailable(cost) < cost {
				retryAfter := int(float64(cost)/rl.cfg.RequestsPerSecond) + 1
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(b.Available(), 10))
			return next(c)
		}
	}
}

// RateLimit returns a rate limiting middleware with its own limiter.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return NewRateLimiter(cfg).Middleware()
}
