package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// RedisLimiter is a fixed-window counter shared by every bot instance that
// points at the same Redis.
type RedisLimiter struct {
	client  *redis.Client
	limit   int
	window  time.Duration
	baseKey string
	now     func() time.Time
}

// NewRedisLimiter connects to redisURL and allows limit calls per key per
// minute.
func NewRedisLimiter(redisURL string, limit int, baseKey string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisLimiterWithClient(client, limit, time.Minute, baseKey), nil
}

func NewRedisLimiterWithClient(client *redis.Client, limit int, window time.Duration, baseKey string) *RedisLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		client:  client,
		limit:   limit,
		window:  window,
		baseKey: baseKey,
		now:     time.Now,
	}
}

// Allow increments the caller's counter for the current window.
// Key: <baseKey>:<key>:<window index>
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := r.now().UnixNano() / int64(r.window)
	windowKey := fmt.Sprintf("%s:%s:%d", r.baseKey, key, slot)

	count, err := r.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}

	// Set expiry on first increment
	if count == 1 {
		if err := r.client.Expire(ctx, windowKey, 2*r.window).Err(); err != nil {
			log.Warn().Err(err).Str("key", windowKey).Msg("RateLimiter: failed to set expiry")
		}
	}

	if count > int64(r.limit) {
		log.Debug().
			Str("key", key).
			Int64("count", count).
			Int("limit", r.limit).
			Msg("Rate limit exceeded")
		return false, nil
	}
	return true, nil
}

// Close closes the Redis client
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
