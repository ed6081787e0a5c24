package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// slidingWindowScript keeps one sorted-set member per admitted request,
// scored by its time in milliseconds. It returns {allowed, count, oldest}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	count = count + 1
	allowed = 1
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
	oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisSlidingWindowLimiter shares a sliding window across instances
type RedisSlidingWindowLimiter struct {
	redis   *redis.Client
	config  RateLimitConfig
	invalid error
	prefix  string
	now     func() time.Time
}

// NewRedisSlidingWindowLimiter creates a Redis-backed limiter
func NewRedisSlidingWindowLimiter(redisClient *redis.Client, config RateLimitConfig, opts ...LimiterOption) *RedisSlidingWindowLimiter {
	o := buildLimiterOptions(opts)
	return &RedisSlidingWindowLimiter{
		redis:   redisClient,
		config:  config,
		invalid: config.Validate(),
		prefix:  o.prefix,
		now:     o.now,
	}
}

func (rl *RedisSlidingWindowLimiter) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow checks if a request is admitted. On a Redis error the caller decides
// whether to fail open.
func (rl *RedisSlidingWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if rl.invalid != nil {
		return Decision{}, rl.invalid
	}
	now := rl.now()
	nowMs := now.UnixMilli()
	windowMs := rl.config.Window.Milliseconds()

	res, err := slidingWindowScript.Run(ctx, rl.redis,
		[]string{rl.redisKey(key)},
		nowMs, windowMs, rl.config.Max, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis error: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected limiter reply of length %d", len(res))
	}

	resetAt := time.UnixMilli(res[2] + windowMs)
	d := Decision{
		Allowed: res[0] == 1,
		Limit:   rl.config.Max,
		ResetAt: resetAt,
	}
	if d.Allowed {
		d.Remaining = rl.config.Max - int(res[1])
	} else {
		d.RetryAfter = resetAt.Sub(now)
	}
	return d, nil
}

// Reset forgets all requests recorded for key
func (rl *RedisSlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.redisKey(key)).Err()
}

// HealthCheck verifies Redis connectivity for rate limiting
func (rl *RedisSlidingWindowLimiter) HealthCheck(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}
