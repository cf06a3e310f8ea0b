package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// IdleTTL drops a caller's limiter after this long without requests.
	IdleTTL time.Duration
	Clock   clock.PassiveClock
}

// DefaultRateLimitConfig returns production-ready rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		IdleTTL:           3 * time.Minute,
	}
}

const sweepEvery = 256

// limiters holds one token bucket per caller
type limiters struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	seen    int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *limiters) allow(key string) bool {
	now := l.cfg.Clock.Now()

	l.mu.Lock()
	l.seen++
	if l.seen%sweepEvery == 0 {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// sweep must be called with mu held
func (l *limiters) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.cfg.IdleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *limiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// callerKey identifies a caller by API key when one is sent, by IP otherwise.
// Sandboxes behind one proxy share an IP but not a key.
func callerKey(c *gin.Context) string {
	if key := c.GetHeader(HeaderAPIKey); key != "" {
		return "key:" + key
	}
	return "ip:" + c.ClientIP()
}

func newLimiters(cfg RateLimitConfig) *limiters {
	defaults := DefaultRateLimitConfig()
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaults.IdleTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	return &limiters{cfg: cfg, buckets: make(map[string]*bucket)}
}

// RateLimit creates a per-caller rate limiting middleware.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	l := newLimiters(cfg)

	return func(c *gin.Context) {
		if !l.allow(callerKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
