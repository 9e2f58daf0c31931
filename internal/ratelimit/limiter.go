// Package ratelimit implements fixed-window counters used to throttle OTP
// delivery and authentication endpoints.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether another event for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts events with INCR and expires the window with EXPIRE.
type RedisLimiter struct {
	cache  *redis.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter builds a limiter allowing max events per window for each key.
func NewRedisLimiter(cache *redis.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{cache: cache, prefix: prefix, max: int64(max), window: window}
}

// Allow increments the counter for key and reports whether it is within the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key
	cnt, err := l.cache.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := l.cache.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= l.max, nil
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is the in-process equivalent of RedisLimiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	now     func() time.Time
	windows map[string]*window
}

// NewMemoryLimiter builds an in-memory limiter for development and tests.
func NewMemoryLimiter(max int, win time.Duration) *MemoryLimiter {
	if max <= 0 {
		max = 5
	}
	if win <= 0 {
		win = time.Minute
	}
	return &MemoryLimiter{max: max, window: win, now: time.Now, windows: make(map[string]*window)}
}

// Allow increments the counter for key and reports whether it is within the limit.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.max, nil
}

// Unlimited allows every event.
type Unlimited struct{}

// Allow always returns true.
func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
