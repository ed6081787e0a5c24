package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisSlidingWindowLimiter_Allow(t *testing.T) {
	_, client := newTestRedis(t)
	clock := newFakeClock()
	limiter := NewRedisSlidingWindowLimiter(client, RateLimitConfig{Max: 10, Window: time.Minute},
		WithLimiterClock(clock.Now), WithKeyPrefix("test"))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := limiter.Allow(ctx, "user:1")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 9-i, d.Remaining)
		clock.Advance(time.Second)
	}

	d, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 10, d.Limit)
	assert.Equal(t, 50*time.Second, d.RetryAfter)

	d, err = limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	clock.Advance(50 * time.Second)
	d, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisSlidingWindowLimiter_KeysAndReset(t *testing.T) {
	mr, client := newTestRedis(t)
	clock := newFakeClock()
	limiter := NewRedisSlidingWindowLimiter(client, RateLimitConfig{Max: 1, Window: time.Minute},
		WithLimiterClock(clock.Now), WithKeyPrefix("ratelimit:search"))
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("ratelimit:search:user:1"))
	assert.Greater(t, mr.TTL("ratelimit:search:user:1"), time.Duration(0))

	d, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	require.NoError(t, limiter.Reset(ctx, "user:1"))
	d, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisSlidingWindowLimiter_RedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewRedisSlidingWindowLimiter(client, SearchRateLimitConfig())

	require.NoError(t, limiter.HealthCheck(context.Background()))
	mr.Close()

	_, err := limiter.Allow(context.Background(), "user:1")
	assert.Error(t, err)
	assert.Error(t, limiter.HealthCheck(context.Background()))
}

func TestRedisSlidingWindowLimiter_InvalidConfig(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewRedisSlidingWindowLimiter(client, RateLimitConfig{Max: 0, Window: time.Minute})

	_, err := limiter.Allow(context.Background(), "user:1")
	assert.Error(t, err)
	assert.Empty(t, mr.Keys())
}
