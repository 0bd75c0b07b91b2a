package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a token bucket per key, used to slow down password guessing.
type Throttle struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewThrottle allows burst attempts per key, refilled at perMinute.
func NewThrottle(perMinute float64, burst int) *Throttle {
	return &Throttle{
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		ttl:     10 * time.Minute,
		buckets: make(map[string]*bucket),
	}
}

// Allow spends one token for key at now.
func (t *Throttle) Allow(key string, now time.Time) bool {
	if t == nil {
		return true
	}
	if key == "" {
		key = "unknown"
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, b := range t.buckets {
		if now.Sub(b.seen) > t.ttl {
			delete(t.buckets, k)
		}
	}
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
