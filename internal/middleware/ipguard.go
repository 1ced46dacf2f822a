package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/config"
	"github.com/aman-churiwal/gen-broker/internal/ratelimit"
	"github.com/aman-churiwal/gen-broker/internal/storage"
	"github.com/gin-gonic/gin"
)

// IPGuard bounds raw request volume per source IP before any quota
// accounting runs. This is abuse protection for the broker itself, distinct
// from the per-client hourly quota enforced inside the orchestrator.
func IPGuard(redis *storage.RedisClient, cfg config.IPGuardConfig) gin.HandlerFunc {
	limiter := ratelimit.NewLimiter(redis, cfg.Algorithm, cfg.RequestsPerMinute, time.Minute)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.ClientIP()

		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			// Guard failures must not take the broker down with them
			c.Next()
			return
		}

		if !allowed {
			resetTime, _ := limiter.Reset(ctx, key)

			retryAfter := int(time.Until(resetTime).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests from this address",
				"limit": limiter.Limit(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
