// Package ratelimit implements per-caller token buckets grouped into
// limit classes. Each feature picks a class; bucket parameters are
// configuration, not protocol.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

type Class string

const (
	ClassDefault  Class = "default"
	ClassMessage  Class = "message"
	ClassExternal Class = "external"
)

// Limit describes one class: Capacity tokens of burst, one token minted
// every RefillInterval.
type Limit struct {
	Capacity       int
	RefillInterval time.Duration
}

type bucketKey struct {
	class Class
	key   string
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

type Limiter struct {
	mu      sync.Mutex
	limits  map[Class]Limit
	buckets map[bucketKey]*bucket
	// now is swappable for tests
	now func() time.Time
}

func NewLimiter(limits map[Class]Limit) (*Limiter, error) {
	for class, limit := range limits {
		if limit.Capacity <= 0 {
			return nil, fmt.Errorf("limit class %q: capacity must be positive", class)
		}
		if limit.RefillInterval <= 0 {
			return nil, fmt.Errorf("limit class %q: refill interval must be positive", class)
		}
	}

	return &Limiter{
		limits:  limits,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}, nil
}

// Allow consumes one token from the (class, key) bucket. When the
// bucket is empty it reports false along with the wait until the next
// token is available. An unknown class always allows.
func (l *Limiter) Allow(class Class, key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[class]
	if !ok {
		return true, 0
	}

	now := l.now()
	bk := bucketKey{class: class, key: key}
	b, ok := l.buckets[bk]
	if !ok {
		b = &bucket{tokens: float64(limit.Capacity), lastFill: now}
		l.buckets[bk] = b
	}

	// refill based on elapsed time, capped at capacity
	elapsed := now.Sub(b.lastFill)
	b.tokens += float64(elapsed) / float64(limit.RefillInterval)
	if b.tokens > float64(limit.Capacity) {
		b.tokens = float64(limit.Capacity)
	}
	b.lastFill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	wait := time.Duration((1 - b.tokens) * float64(limit.RefillInterval))
	return false, wait
}

// Wait blocks until a token is available for (class, key), consuming
// it. Used by flows that prefer back-pressure over a throttled error.
func (l *Limiter) Wait(class Class, key string) {
	for {
		ok, wait := l.Allow(class, key)
		if ok {
			return
		}
		time.Sleep(wait)
	}
}
