package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/portal-mailer/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Throttle provides atomic provider-level rate limiting using a Redis Lua
// script. The check and increment happen in one script so concurrent senders
// cannot race a GET → check → INCR pattern past the limit.
type Throttle struct {
	redis  *redis.Client
	limits ThrottleLimits
	script *redis.Script
}

// ThrottleLimits bounds sends per window.
type ThrottleLimits struct {
	PerSecond int
	PerMinute int
	Daily     int
}

// The script checks every window before incrementing any of them, so a
// denial leaves all counters untouched.
const throttleLuaScript = `
local secondKey = KEYS[1]
local minuteKey = KEYS[2]
local dailyKey = KEYS[3]
local secondLimit = tonumber(ARGV[1])
local minuteLimit = tonumber(ARGV[2])
local dailyLimit = tonumber(ARGV[3])

local secCurrent = tonumber(redis.call("GET", secondKey) or "0")
local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if secCurrent + 1 > secondLimit then
    return 0
end
if minCurrent + 1 > minuteLimit then
    return 0
end
if dayCurrent + 1 > dailyLimit then
    return 0
end

local newSec = redis.call("INCR", secondKey)
if newSec == 1 then
    redis.call("EXPIRE", secondKey, 1)
end
local newMin = redis.call("INCR", minuteKey)
if newMin == 1 then
    redis.call("EXPIRE", minuteKey, 60)
end
local newDay = redis.call("INCR", dailyKey)
if newDay == 1 then
    redis.call("EXPIRE", dailyKey, 86400)
end

return 1
`

// NewThrottle creates a throttle with a pre-compiled Lua script.
func NewThrottle(client *redis.Client, limits ThrottleLimits) *Throttle {
	return &Throttle{
		redis:  client,
		limits: limits,
		script: redis.NewScript(throttleLuaScript),
	}
}

// NewThrottleFromURL connects to Redis and creates a throttle.
func NewThrottleFromURL(redisURL string, limits ThrottleLimits) (*Throttle, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewThrottle(redis.NewClient(opts), limits), nil
}

// Allow atomically reserves one send slot for the provider. A Redis outage
// fails open: the worker-pool bound still limits concurrency, and dropping
// sends on an infra blip would be worse than briefly exceeding the budget.
func (t *Throttle) Allow(ctx context.Context, provider string) bool {
	now := time.Now()
	keys := []string{
		fmt.Sprintf("throttle:%s:sec:%d", provider, now.Unix()),
		fmt.Sprintf("throttle:%s:min:%d", provider, now.Unix()/60),
		fmt.Sprintf("throttle:%s:day:%s", provider, now.UTC().Format("2006-01-02")),
	}

	res, err := t.script.Run(ctx, t.redis, keys,
		t.limits.PerSecond, t.limits.PerMinute, t.limits.Daily).Int()
	if err != nil {
		logger.Warn("throttle check failed, allowing send", "provider", provider, "error", err.Error())
		return true
	}
	return res == 1
}
