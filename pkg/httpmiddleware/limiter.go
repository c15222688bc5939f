package httpmiddleware

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// window holds the counts of the current and previous fixed windows.
type window struct {
	start     time.Time
	count     float64
	prevCount float64
}

// MemoryLimiter is a per-process sliding window limiter. The previous
// window's count is weighted by how much of it the sliding window still
// covers.
type MemoryLimiter struct {
	max    int
	window time.Duration

	mu   sync.Mutex
	keys map[string]*window
}

// NewMemoryLimiter allows max requests per sliding window.
func NewMemoryLimiter(limit int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:    limit,
		window: win,
		keys:   make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.window)
	w, ok := l.keys[key]
	switch {
	case !ok:
		w = &window{start: start}
		l.keys[key] = w
	case start.Sub(w.start) == l.window:
		w.prevCount, w.count, w.start = w.count, 0, start
	case start.Sub(w.start) > l.window:
		w.prevCount, w.count, w.start = 0, 0, start
	}

	covered := 1 - float64(now.Sub(w.start))/float64(l.window)
	used := w.prevCount*covered + w.count
	resetAt := w.start.Add(l.window)
	if used >= float64(l.max) {
		return Decision{ResetAt: resetAt}, nil
	}
	w.count++
	return Decision{
		Allowed:   true,
		Remaining: max(int(float64(l.max)-used-1), 0),
		ResetAt:   resetAt,
	}, nil
}

// Cleanup drops keys idle for two windows.
func (l *MemoryLimiter) Cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.keys {
		if now.Sub(w.start) >= 2*l.window {
			delete(l.keys, key)
		}
	}
}

// StartCleanup runs Cleanup every two windows until ctx is done.
func (l *MemoryLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * l.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Cleanup(now)
			}
		}
	}()
}

// RedisLimiter is a fixed window limiter shared by all instances through
// Redis.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	prefix string
}

// NewRedisLimiter allows max requests per fixed window.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		max:    max,
		window: window,
		prefix: "food-hub-ratelimit:",
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	start := now.Truncate(l.window)
	k := l.prefix + key + ":" + start.Format("20060102T150405")

	var incr *redis.IntCmd
	if _, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.PExpire(ctx, k, l.window)
		return nil
	}); err != nil {
		return Decision{}, errors.Wrap(err, "redis incr")
	}

	n := int(incr.Val())
	d := Decision{
		Allowed:   n <= l.max,
		Remaining: max(l.max-n, 0),
		ResetAt:   start.Add(l.window),
	}
	return d, nil
}
