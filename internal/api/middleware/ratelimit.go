package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coreledger/engine/internal/config"
)

// rateLimiter tracks a sliding window of request timestamps per client IP.
// Ported from src/diplomat/middleware/ratelimit.go's in-memory map + mutex
// shape, generalized from *config.Config to the standalone RateLimitConfig
// this module's config package carries.
type rateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	limit    int
	window   time.Duration
}

// RateLimit rejects a client IP with 429 once it exceeds cfg.RequestsPerMinute
// requests within cfg.Window. A RequestsPerMinute of 0 disables the check.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    cfg.RequestsPerMinute,
		window:   cfg.Window,
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		limiter.mutex.Lock()
		defer limiter.mutex.Unlock()

		now := time.Now()

		var valid []time.Time
		for _, reqTime := range limiter.requests[clientIP] {
			if now.Sub(reqTime) < limiter.window {
				valid = append(valid, reqTime)
			}
		}
		limiter.requests[clientIP] = valid

		if len(valid) >= limiter.limit {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded, try again later",
				"retry_after": int(limiter.window.Seconds()),
			})
			c.Abort()
			return
		}

		limiter.requests[clientIP] = append(limiter.requests[clientIP], now)
		c.Next()
	}
}
