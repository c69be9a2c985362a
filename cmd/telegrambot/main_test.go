package main

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akagifreeez/telegram-key-bot/internal/config"
	"github.com/akagifreeez/telegram-key-bot/pkg/ratelimit"
)

func TestNewLimiter_Disabled(t *testing.T) {
	assert.Nil(t, newLimiter(&config.Config{CommandRateLimit: 0}))
}

func TestNewLimiter_InMemoryWithoutRedis(t *testing.T) {
	limiter := newLimiter(&config.Config{CommandRateLimit: 5})
	defer limiter.Close()

	assert.IsType(t, &ratelimit.MemoryLimiter{}, limiter)
}

func TestNewLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	limiter := newLimiter(&config.Config{CommandRateLimit: 5, RedisURL: "redis://" + mr.Addr()})
	defer limiter.Close()

	assert.IsType(t, &ratelimit.RedisLimiter{}, limiter)
}

func TestNewLimiter_UnreachableRedisFallsBack(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	limiter := newLimiter(&config.Config{CommandRateLimit: 5, RedisURL: "redis://" + addr})
	defer limiter.Close()

	assert.IsType(t, &ratelimit.MemoryLimiter{}, limiter)
}
