package bastion

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a bucket may sit unused before it is evicted.
// A bucket refills completely within an hour, so an evicted bucket and a
// fresh one behave the same.
const limiterIdleTTL = time.Hour

// requestLimiter throttles elevation requests with one token bucket per
// organization/user pair.
type requestLimiter struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newRequestLimiter(perHour int) *requestLimiter {
	if perHour <= 0 {
		return nil
	}
	return &requestLimiter{
		every:   rate.Every(time.Hour / time.Duration(perHour)),
		burst:   perHour,
		buckets: make(map[string]*bucket),
	}
}

func (l *requestLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= limiterIdleTTL {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops buckets idle for at least limiterIdleTTL. Callers hold mu.
func (l *requestLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= limiterIdleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

func (l *requestLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
