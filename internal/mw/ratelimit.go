package mw

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// minIdle is the shortest time an untouched bucket is kept.
const minIdle = 10 * time.Minute

// ClientRateLimiter stores a token bucket per client key. Buckets untouched
// for longer than it takes them to refill are dropped, since a fresh one
// behaves the same.
type ClientRateLimiter struct {
	clients *cache.Cache
	r       rate.Limit
	b       int
}

// NewClientRateLimiter creates a new ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return newClientRateLimiter(r, b, idleFor(r, b))
}

func newClientRateLimiter(r rate.Limit, b int, idle time.Duration) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: cache.New(idle, idle),
		r:       r,
		b:       b,
	}
}

// idleFor is the refill time of an empty bucket, floored at minIdle.
func idleFor(r rate.Limit, b int) time.Duration {
	if r <= 0 || r == rate.Inf {
		return minIdle
	}
	refill := time.Duration(float64(b) / float64(r) * float64(time.Second))
	if refill < minIdle {
		return minIdle
	}
	return refill
}

// GetLimiter returns the limiter for key, creating it on first use. Every
// lookup pushes the bucket's eviction back.
func (l *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	if v, ok := l.clients.Get(key); ok {
		limiter := v.(*rate.Limiter)
		l.clients.SetDefault(key, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(l.r, l.b)
	if err := l.clients.Add(key, limiter, cache.DefaultExpiration); err != nil {
		// Lost the race to another request for the same key.
		if v, ok := l.clients.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// RateLimiter limits requests per caller. Authenticated requests are keyed by
// user so several members behind one NAT do not starve each other; anonymous
// ones fall back to the client IP.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b)
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if raw := c.GetString(rawIdentityKey); raw != "" {
			key = "user:" + raw
		}
		if !limiter.GetLimiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": "rate_limited", "message": "too many requests"})
			return
		}
		c.Next()
	}
}
