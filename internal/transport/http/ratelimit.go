package http

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// userLimiter hands out one token bucket per user id. A zero rate
// disables limiting entirely.
type userLimiter struct {
	mu      sync.Mutex
	buckets map[int64]*rate.Limiter
	rate    rate.Limit
	burst   int
}

func newUserLimiter(perSecond float64, burst int) *userLimiter {
	return &userLimiter{
		buckets: make(map[int64]*rate.Limiter),
		rate:    rate.Limit(perSecond),
		burst:   burst,
	}
}

func (l *userLimiter) allow(userID int64) bool {
	if l == nil || l.rate <= 0 {
		return true
	}
	l.mu.Lock()
	b, ok := l.buckets[userID]
	if !ok {
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[userID] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

// rateLimitMiddleware rejects requests exceeding the caller's send
// budget with 429.
func rateLimitMiddleware(limiter *userLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUser(c)
		if ok && !limiter.allow(uid) {
			c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
