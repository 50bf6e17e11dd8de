package ghapi

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces calls per key with a fixed-window token bucket: at most
// rate calls per interval, after which Wait blocks until the window resets.
type RateLimiter struct {
	mu       sync.Mutex
	rate     int
	interval time.Duration
	buckets  map[string]*bucket
	now      func() time.Time
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

// NewRateLimiter allows rate calls per interval for each key. A rate of
// zero or less disables limiting.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:     rate,
		interval: interval,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// reserve takes a token for key. When none is left it returns how long
// until the window resets.
func (rl *RateLimiter) reserve(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	b, exists := rl.buckets[key]
	if !exists || now.Sub(b.lastReset) >= rl.interval {
		rl.buckets[key] = &bucket{tokens: rl.rate - 1, lastReset: now}
		return true, 0
	}

	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}

	return false, b.lastReset.Add(rl.interval).Sub(now)
}

// Wait blocks until a call for key is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if rl == nil || rl.rate <= 0 {
		return nil
	}
	for {
		ok, wait := rl.reserve(key)
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
