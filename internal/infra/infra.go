// Package infra provides shared infrastructure components used across
// the application: caching, rate limiting, and HTTP utilities.
package infra

import (
	"context"
	"sync"
	"time"
)

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a simple thread-safe in-memory cache with TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a new cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a value from the cache. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush removes all entries from the cache.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.mu.Unlock()
}

// --- Rate limiter ---

// DefaultWindow is the rolling window the provider quota is expressed in.
const DefaultWindow = time.Minute

// RateLimiter allows at most limit calls in any rolling window. It keeps
// the timestamps of granted calls; a call is granted once the oldest
// timestamp has left the window. Safe for concurrent use.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  []time.Time // granted call times, oldest first

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter granting limit calls per window.
// A limit below 1 is treated as 1 so Wait always returns eventually.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		calls:  make([]time.Time, 0, limit),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// NewPerMinute creates a limiter for a calls-per-minute budget.
func NewPerMinute(callsPerMinute int) *RateLimiter {
	return NewRateLimiter(callsPerMinute, DefaultWindow)
}

// Limit returns the number of calls allowed per window.
func (rl *RateLimiter) Limit() int { return rl.limit }

// Window returns the rolling window length.
func (rl *RateLimiter) Window() time.Duration { return rl.window }

// Used returns how many calls were granted in the current window.
func (rl *RateLimiter) Used() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.evict(rl.now())
	return len(rl.calls)
}

// Wait blocks until a call slot is available or ctx is cancelled, then
// records the call.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := rl.now()
		rl.evict(now)
		if len(rl.calls) < rl.limit {
			rl.calls = append(rl.calls, now)
			rl.mu.Unlock()
			return nil
		}
		delay := rl.calls[0].Add(rl.window).Sub(now)
		rl.mu.Unlock()

		if err := rl.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// evict drops timestamps that have left the window. Must be called with mu held.
func (rl *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.calls) && !rl.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rl.calls = append(rl.calls[:0], rl.calls[i:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
