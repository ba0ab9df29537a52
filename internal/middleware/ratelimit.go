package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateChecker counts a hit against a key and reports whether it stays within
// the allowance for the window. Backed by the Redis state repository.
type RateChecker interface {
	CheckRateLimit(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error)
}

// RateLimit returns a Gin middleware limiting requests per client IP.
func RateLimit(checker RateChecker, maxRequests int, window time.Duration) gin.HandlerFunc {
	if checker == nil {
		panic("rate checker cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		// Behind a reverse proxy ClientIP honors X-Forwarded-For if the
		// trusted proxies are configured on the engine.
		key := "ratelimit:" + c.ClientIP()

		allowed, err := checker.CheckRateLimit(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			logrus.WithError(err).Error("RateLimit: counter check failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting error"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
