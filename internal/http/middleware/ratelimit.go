package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/ratelimit"
)

// RateLimit applies limiter per user when authenticated, per client IP otherwise.
// A nil limiter lets every request through.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		if id, ok := UserID(c); ok {
			key = "user:" + strconv.FormatUint(uint64(id), 10)
		}

		res := limiter.Allow(c.Request.Context(), key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retry := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.Error(domain.ErrRateLimited.WithDetails(map[string]interface{}{
				"limit":      res.Limit,
				"retryAfter": retry,
			}))
			c.Abort()
			return
		}
		c.Next()
	}
}
