package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// UserRateLimiter keeps one token bucket per authenticated user.
type UserRateLimiter struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	limiters map[int64]*userLimiter
	idleTTL  time.Duration
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewUserRateLimiter(rps int) *UserRateLimiter {
	if rps <= 0 {
		rps = 1
	}
	return &UserRateLimiter{
		rps:      rate.Limit(rps),
		burst:    rps,
		limiters: make(map[int64]*userLimiter),
		idleTTL:  10 * time.Minute,
	}
}

func (l *UserRateLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now

	// чистим давно неактивных пользователей
	if len(l.limiters) > 1024 {
		for id, other := range l.limiters {
			if now.Sub(other.lastSeen) > l.idleTTL {
				delete(l.limiters, id)
			}
		}
	}
	return ul.limiter.Allow()
}

// RateLimitMiddleware must run after AuthMiddleware.
func RateLimitMiddleware(limiter *UserRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if ok && !limiter.Allow(userID) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
