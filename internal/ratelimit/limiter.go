package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits at most limit requests per key and window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) Decision
}

// LocalLimiter is a per-process token bucket per key. It is the fallback when
// Redis is unavailable, so limits become per-instance rather than global.
type LocalLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	limiter    *rate.Limiter
	limit      int
	lastAccess time.Time
}

// NewLocal builds a local limiter. A non-positive window means one minute.
func NewLocal(window time.Duration) *LocalLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &LocalLimiter{
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string, limit int) Decision {
	if limit <= 0 {
		limit = 1
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now)

	b, ok := l.buckets[key]
	if !ok || b.limit != limit {
		every := rate.Every(l.window / time.Duration(limit))
		b = &bucket{limiter: rate.NewLimiter(every, limit), limit: limit}
		l.buckets[key] = b
	}
	b.lastAccess = now

	allowed := b.limiter.AllowN(now, 1)
	remaining := int(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Count:     limit - remaining,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(l.window / time.Duration(limit)),
	}
}

// prune drops buckets idle for two windows; by then they are full again.
func (l *LocalLimiter) prune(now time.Time) {
	ttl := 2 * l.window
	for key, b := range l.buckets {
		if now.Sub(b.lastAccess) > ttl {
			delete(l.buckets, key)
		}
	}
}
