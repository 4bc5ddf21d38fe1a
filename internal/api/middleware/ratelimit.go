package middleware

import (
	"log/slog"
	"net/http"

	"reviewhub/internal/pkg/metrics"
	"reviewhub/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// AuthRateLimit throttles auth endpoints per client IP.
// Limiter errors fail open: a broken redis must not lock out signups.
func AuthRateLimit(limiter *ratelimit.RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			if logger != nil {
				logger.Warn("rate limit check failed", slog.String("error", err.Error()))
			}
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimitRejectedTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": int(retryAfter.Seconds()) + 1,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
