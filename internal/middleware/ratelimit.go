package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/reqtrail/reqtrail/internal/pkg/apperrors"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware throttles per client IP. rps <= 0 disables the
// middleware entirely.
func RateLimitMiddleware(rps float64) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[ip]
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[ip] = l
		}
		return l
	}

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			c.Error(apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
