package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestRedisLimiter(t *testing.T, limit int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisLimiterWithClient(client, limit, time.Minute, "bot:commands")
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter, mr
}

func TestRedisLimiter_AllowsUpToLimit(t *testing.T) {
	limiter, _ := newTestRedisLimiter(t, 2)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	// Other users have their own counter.
	ok, err = limiter.Allow(ctx, "43")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_WindowRollsOver(t *testing.T) {
	limiter, _ := newTestRedisLimiter(t, 1)
	ctx := context.Background()

	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow(ctx, "42")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "42")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, err := limiter.Allow(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_SetsExpiry(t *testing.T) {
	limiter, mr := newTestRedisLimiter(t, 5)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	_, err := limiter.Allow(context.Background(), "42")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 2*time.Minute, mr.TTL(keys[0]))
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	limiter := NewRedisLimiterWithClient(client, 5, time.Minute, "bot:commands")
	defer limiter.Close()
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "42")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisLimiter_BadURL(t *testing.T) {
	_, err := NewRedisLimiter("not-a-url", 5, "bot:commands")
	assert.Error(t, err)
}

func TestNewRedisLimiter_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	limiter, err := NewRedisLimiter("redis://"+mr.Addr(), 5, "bot:commands")
	require.NoError(t, err)
	defer limiter.Close()

	ok, err := limiter.Allow(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Minute)
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "42")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "42")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "42")
	assert.False(t, ok)

	ok, _ = limiter.Allow(ctx, "43")
	assert.True(t, ok)

	assert.NoError(t, limiter.Close())
}

func TestMemoryLimiter_Refills(t *testing.T) {
	limiter := NewMemoryLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "42")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "42")
	assert.False(t, ok)

	time.Sleep(30 * time.Millisecond)
	ok, _ = limiter.Allow(ctx, "42")
	assert.True(t, ok)
}

func TestMemoryLimiter_SweepDropsIdleBuckets(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	limiter.limiters["idle"] = newFullBucket(limiter)

	limiter.sweep()
	assert.NotContains(t, limiter.limiters, "idle")
}

func newFullBucket(m *MemoryLimiter) *rate.Limiter {
	return rate.NewLimiter(m.every, m.burst)
}
