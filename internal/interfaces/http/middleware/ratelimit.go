package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ketchup/backend/internal/infrastructure/cache"
	"github.com/ketchup/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// RateLimitConfig configures the fixed-window limiter
type RateLimitConfig struct {
	// Limit is the maximum number of requests per window per key
	Limit int64
	// Window is the fixed window length
	Window time.Duration
	// KeyFunc derives the limiter key. Defaults to client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit returns a rate limiting middleware backed by a shared counter.
// Counter failures fail open: a broken Redis must not take the API down.
func RateLimit(counter cache.RateCounter, cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		key := keyFunc(c)

		count, err := counter.Increment(c.Request.Context(), key, cfg.Window)
		if err != nil {
			logger.Warn("Rate counter unavailable; allowing request",
				zap.String("key", key),
				zap.Error(err))
			c.Next()
			return
		}

		remaining := cfg.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(cfg.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > cfg.Limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
			))
			return
		}
		c.Next()
	}
}
