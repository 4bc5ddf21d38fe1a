package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms, tokens}
`

// RateLimiter is a redis-backed token bucket keyed per caller.
type RateLimiter struct {
	rdb       *redis.Client
	keyPrefix string
	rate      float64
	burst     float64
	script    *redis.Script
}

func NewRedisRateLimiter(rdb *redis.Client, keyPrefix string, rate float64, burst float64) *RateLimiter {
	if keyPrefix == "" {
		keyPrefix = "reviewhub:ratelimit:"
	}
	return &RateLimiter{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		rate:      rate,
		burst:     burst,
		script:    redis.NewScript(tokenBucketLua),
	}
}

// Allow reports whether a request under key may proceed right now.
// When denied, retryAfter is the wait until a token becomes available.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if r == nil || r.rate <= 0 || r.burst <= 0 {
		return true, 0, nil
	}

	now := time.Now().UnixMilli()
	res, err := r.script.Run(ctx, r.rdb, []string{r.keyPrefix + key}, r.rate, r.burst, now, 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result")
	}

	allowed := toInt64(values[0]) == 1
	waitMs := toInt64(values[1])
	return allowed, time.Duration(waitMs) * time.Millisecond, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if t == "" {
			return 0
		}
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
