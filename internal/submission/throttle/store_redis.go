package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "relay:throttle:"

// allowScript keeps a sorted set of submission timestamps (ms) per key.
// KEYS[1] set; ARGV: now, window, limit, member.
// Returns {allowed, remaining, oldest}.
var allowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
local allowed = 0
if count < limit then
	redis.call("ZADD", KEYS[1], now, ARGV[4])
	redis.call("PEXPIRE", KEYS[1], window)
	count = count + 1
	allowed = 1
end
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
local first = now
if oldest[2] then
	first = tonumber(oldest[2])
end
local remaining = limit - count
if allowed == 0 then
	remaining = 0
end
return {allowed, remaining, first}
`)

// RedisStore shares sliding windows between bot replicas.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := s.now().UnixMilli()
	vals, err := allowScript.Run(ctx, s.client, []string{keyPrefix + key},
		now, window.Milliseconds(), limit, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("throttle %s: %w", key, err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("throttle %s: unexpected script reply %v", key, vals)
	}
	return &Result{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[1]),
		ResetAt:   time.UnixMilli(vals[2]).Add(window),
	}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset throttle %s: %w", key, err)
	}
	return nil
}
