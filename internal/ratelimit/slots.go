package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// reserveSlotScript hands out send slots spaced ARGV[1] ms apart and
// returns how long the caller must wait for its slot.
const reserveSlotScript = `
local gap = tonumber(ARGV[1])
local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local next = tonumber(redis.call("GET", KEYS[1]))
if next == nil or next < now then
  next = now
end

redis.call("SET", KEYS[1], next + gap, "PX", (next - now) + gap * 2)
return next - now
`

var errSlotsNotConfigured = errors.New("slot reservation requires redis")

// Slots spaces requests across every replica sharing the same Redis.
type Slots struct {
	client *redis.Client
	script *redis.Script
}

// NewSlots returns nil without a Redis client; callers fall back to
// in-process pacing.
func NewSlots(client *redis.Client) *Slots {
	if client == nil {
		return nil
	}
	return &Slots{
		client: client,
		script: redis.NewScript(reserveSlotScript),
	}
}

// Reserve books the next free slot for key and returns the delay until it.
func (s *Slots) Reserve(ctx context.Context, key string, gap time.Duration) (time.Duration, error) {
	if s == nil || s.client == nil {
		return 0, errSlotsNotConfigured
	}
	if gap <= 0 {
		return 0, nil
	}

	res, err := s.script.Run(ctx, s.client, []string{key}, gap.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	return time.Duration(toInt64(res)) * time.Millisecond, nil
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case string:
		parsed, _ := strconv.ParseInt(val, 10, 64)
		return parsed
	default:
		return 0
	}
}
