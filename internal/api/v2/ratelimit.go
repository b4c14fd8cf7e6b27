// internal/api/v2/ratelimit.go
package api

import (
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	limiterIdleExpiry      = 10 * time.Minute
	limiterCleanupInterval = 5 * time.Minute
)

// userRateLimiter keeps one token bucket per key. Idle buckets expire from
// the cache, so the map does not grow with every user ever seen.
type userRateLimiter struct {
	limit rate.Limit
	burst int
	store *cache.Cache
}

func newUserRateLimiter(rps float64, burst int) *userRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &userRateLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		store: cache.New(limiterIdleExpiry, limiterCleanupInterval),
	}
}

// get returns the bucket for key, creating it on first use.
func (l *userRateLimiter) get(key string) *rate.Limiter {
	if v, found := l.store.Get(key); found {
		if lim, ok := v.(*rate.Limiter); ok {
			// Touch to extend the idle expiry
			l.store.SetDefault(key, lim)
			return lim
		}
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.store.Add(key, lim, cache.DefaultExpiration); err != nil {
		// Another request created it first
		if v, found := l.store.Get(key); found {
			if existing, ok := v.(*rate.Limiter); ok {
				return existing
			}
		}
	}
	return lim
}

// Allow reports whether a request for key may proceed now. When it may not,
// retryAfter is the wait until the next token.
func (l *userRateLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	lim := l.get(key)
	r := lim.Reserve()
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// Flush drops all buckets.
func (l *userRateLimiter) Flush() {
	l.store.Flush()
}
