package parser

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterSpacesSameKey(t *testing.T) {
	l := NewRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "key-a"))
	require.NoError(t, l.Wait(ctx, "key-a"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	l := NewRateLimiter(time.Second)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "key-a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "key-b"))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestRateLimiterFirstCallDoesNotBlock(t *testing.T) {
	l := NewRateLimiter(time.Second)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "key-a"))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestRateLimiterHonorsContext(t *testing.T) {
	l := NewRateLimiter(5 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "key-a"))
	err := l.Wait(ctx, "key-a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	l := NewRedisRateLimiter(rdb, 100*time.Millisecond)
	ctx := context.Background()

	// first claim is immediate
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "key-a"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	// second claim waits out the slot TTL
	mr.FastForward(100 * time.Millisecond)
	require.NoError(t, l.Wait(ctx, "key-a"))
}

func TestRedisRateLimiterKeysAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	l := NewRedisRateLimiter(rdb, time.Second)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "key-a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "key-b"))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}
