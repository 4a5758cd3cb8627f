package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// LimiterPool keeps one token bucket per key. Idle buckets are evicted after ttl.
type LimiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   float64
	burst int
	ttl   time.Duration
	now   func() time.Time

	startCleanup sync.Once
}

// NewLimiterPool builds a pool; non-positive settings fall back to 5 rps and a burst of 10.
func NewLimiterPool(rps float64, burst int, ttl time.Duration) *LimiterPool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LimiterPool{
		m:     make(map[string]*limiterEntry),
		rps:   rps,
		burst: burst,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Allow consumes one token for key.
func (p *LimiterPool) Allow(key string) bool {
	p.mu.Lock()
	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.m[key] = e
	}
	e.lastSeen = p.now()
	p.mu.Unlock()
	return e.l.Allow()
}

// Sweep drops buckets idle for longer than the ttl.
func (p *LimiterPool) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.now().Add(-p.ttl)
	removed := 0
	for key, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (p *LimiterPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

func (p *LimiterPool) cleanupLoop() {
	ticker := time.NewTicker(p.ttl / 2)
	defer ticker.Stop()
	for range ticker.C {
		p.Sweep()
	}
}

// RateLimit rejects callers that exceed their bucket with 429. Requests are
// keyed by the authenticated user, or the client IP before authentication.
func RateLimit(pool *LimiterPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		pool.startCleanup.Do(func() { go pool.cleanupLoop() })

		key := c.GetString(UserIDKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !pool.Allow(key) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}
		c.Next()
	}
}
