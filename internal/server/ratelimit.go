package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter throttles requests per reader with a token bucket each.
type RateLimiter struct {
	limit rate.Limit
	burst int
	clock func() time.Time

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	lastScan time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests with bursts of burst. A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		clock:    time.Now,
		limiters: make(map[string]*limiterEntry),
	}
}

// Allow reports whether key may issue one more request now.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil || l.limit == rate.Inf {
		return true
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastScan) > limiterIdleTTL {
		for candidate, entry := range l.limiters {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.limiters, candidate)
			}
		}
		l.lastScan = now
	}
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (h *httpHandler) throttle(c *gin.Context) {
	if !h.limiter.Allow(currentReader(c).String()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "code": "rate_limited"})
		return
	}
	c.Next()
}
