// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a process-local token-bucket limiter. Each caller
// (authenticated user, or client IP for anonymous catalog browsing) owns a
// bucket from golang.org/x/time/rate. Requests may weigh more than one
// token: generating a shopping list PDF is far costlier than listing
// recipes, so the router charges downloads extra.
//
// Idempotent replays flagged by IdempotencyValidator are never charged.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to the identity whose bucket it draws from.
type KeyFunc func(*gin.Context) string

// CostFunc reports how many tokens a request consumes.
type CostFunc func(*gin.Context) int

// KeyByUserOrIP keys authenticated callers by user id ("user:42") and
// anonymous ones by client IP ("ip:203.0.113.7").
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := userIDFromCtx(c); uid > 0 {
			return "user:" + strconv.FormatInt(uid, 10)
		}
		return "ip:" + c.ClientIP()
	}
}

// CostByRoute charges the given weight for "METHOD /full/path" routes and 1
// for everything else.
func CostByRoute(weights map[string]int) CostFunc {
	return func(c *gin.Context) int {
		if w, ok := weights[c.Request.Method+" "+c.FullPath()]; ok && w > 0 {
			return w
		}
		return 1
	}
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64 // tokens replenished per second
	Burst int     // bucket size; values <= 0 become 1
	Key   KeyFunc // defaults to KeyByUserOrIP
	Cost  CostFunc
	// IdleTTL evicts buckets not used for this long (default 10m).
	IdleTTL time.Duration
	// SweepEvery is the number of lookups between eviction sweeps
	// (default 5000).
	SweepEvery int
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds the per-caller buckets. It is safe for concurrent use.
type RateLimiter struct {
	opts RateLimitOptions
	now  func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int
}

// NewRateLimiter builds a limiter from opts, filling in defaults.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Key == nil {
		opts.Key = KeyByUserOrIP()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = 5000
	}
	return &RateLimiter{
		opts:    opts,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// limiter returns the bucket for key. Idle buckets are swept before the
// lookup so a stale bucket for key is replaced by a fresh one.
func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.opts.SweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.opts.IdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(rl.opts.RPS), rl.opts.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// cost clamps the request weight into [1, Burst] so heavy requests remain
// satisfiable by a full bucket.
func (rl *RateLimiter) cost(c *gin.Context) int {
	n := 1
	if rl.opts.Cost != nil {
		n = rl.opts.Cost(c)
	}
	return max(1, min(n, rl.opts.Burst))
}

// IsRateBypass reports whether IdempotencyValidator flagged the request as
// a replay that must not be charged.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// retryAfter renders d as whole seconds, at least 1.
func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// take consumes n tokens, or reports how long until they are available.
// A zero rate never refills, so the caller is told to retry in a second.
func (rl *RateLimiter) take(lim *rate.Limiter, now time.Time, n int) (time.Duration, bool) {
	if rl.opts.RPS <= 0 {
		return time.Second, lim.AllowN(now, n)
	}
	res := lim.ReserveN(now, n)
	wait := res.DelayFrom(now)
	if wait == 0 {
		return 0, true
	}
	res.CancelAt(now)
	return wait, false
}

// Handler returns the Gin middleware. Rejected requests get 429 with a
// Retry-After computed from the bucket refill time.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		lim := rl.limiter(rl.opts.Key(c), now)
		wait, ok := rl.take(lim, now, rl.cost(c))
		if ok {
			c.Next()
			return
		}
		rateLimited.WithLabelValues(metricsPath(c)).Inc()
		c.Header("Retry-After", retryAfter(wait))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
