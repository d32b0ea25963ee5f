package parser

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MinCallInterval is the minimum spacing between outbound calls sharing one
// credential key.
const MinCallInterval = 1200 * time.Millisecond

// Pacer blocks the caller until pacing permits a call for the given key.
// This is cooperative pacing for background workers; it must never run on a
// request-serving path.
type Pacer interface {
	Wait(ctx context.Context, key string) error
}

// RateLimiter is the in-process pacer. It keeps the last reserved call time
// per key; correct for a single process only.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
}

// NewRateLimiter creates a per-key pacer. A non-positive interval falls back
// to MinCallInterval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		interval = MinCallInterval
	}
	return &RateLimiter{
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

// Wait blocks until at least the configured interval has elapsed since the
// key's last reserved call, then records the new call time. Different keys
// never block each other.
func (l *RateLimiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	now := time.Now()
	next := now
	if last, ok := l.last[key]; ok {
		if earliest := last.Add(l.interval); earliest.After(now) {
			next = earliest
		}
	}
	l.last[key] = next
	l.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RedisRateLimiter paces per key through a shared Redis slot so pacing holds
// across multiple worker processes.
type RedisRateLimiter struct {
	rdb      *redis.Client
	interval time.Duration
	prefix   string
}

// NewRedisRateLimiter creates a store-backed pacer.
func NewRedisRateLimiter(rdb *redis.Client, interval time.Duration) *RedisRateLimiter {
	if interval <= 0 {
		interval = MinCallInterval
	}
	return &RedisRateLimiter{
		rdb:      rdb,
		interval: interval,
		prefix:   "dealtrack:pace:",
	}
}

// Wait claims the key's pacing slot, sleeping out the remaining TTL when
// another worker holds it.
func (l *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	for {
		ok, err := l.rdb.SetNX(ctx, l.prefix+key, 1, l.interval).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		ttl, err := l.rdb.PTTL(ctx, l.prefix+key).Result()
		if err != nil || ttl <= 0 {
			ttl = l.interval
		}
		select {
		case <-time.After(ttl):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
