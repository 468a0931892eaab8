package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter is a token bucket per client IP. Idle buckets are dropped lazily.
type LoginLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	swept   time.Time
	now     func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLoginLimiter allows perMinute attempts per IP with the given burst. A
// non-positive perMinute disables limiting.
func NewLoginLimiter(perMinute, burst int) *LoginLimiter {
	l := rate.Inf
	if perMinute > 0 {
		l = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst <= 0 {
		burst = 1
	}
	return &LoginLimiter{
		buckets: make(map[string]*bucket),
		limit:   l,
		burst:   burst,
		ttl:     10 * time.Minute,
		now:     time.Now,
	}
}

func (l *LoginLimiter) Allow(ip string) bool {
	if l == nil || l.limit == rate.Inf {
		return true
	}
	if ip == "" {
		ip = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) > l.ttl {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
