package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"relay/internal/settings/models"
)

const keyPrefix = "relay:edit:"

// claimScript deletes the session only if it still targets ARGV[1].
var claimScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares edit sessions between bot replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Begin(ctx context.Context, moderatorID string, key models.Key) error {
	if err := s.client.Set(ctx, keyPrefix+moderatorID, string(key), s.ttl).Err(); err != nil {
		return fmt.Errorf("begin edit session: %w", err)
	}
	return nil
}

func (s *RedisStore) Peek(ctx context.Context, moderatorID string) (models.Key, bool, error) {
	v, err := s.client.Get(ctx, keyPrefix+moderatorID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read edit session: %w", err)
	}
	return models.Key(v), true, nil
}

func (s *RedisStore) Claim(ctx context.Context, moderatorID string, key models.Key) (bool, error) {
	n, err := claimScript.Run(ctx, s.client, []string{keyPrefix + moderatorID}, string(key)).Int()
	if err != nil {
		return false, fmt.Errorf("claim edit session: %w", err)
	}
	return n == 1, nil
}

// Restore reinstates a claimed session with SET NX so a newer Begin wins.
func (s *RedisStore) Restore(ctx context.Context, moderatorID string, key models.Key) error {
	err := s.client.SetArgs(ctx, keyPrefix+moderatorID, string(key), redis.SetArgs{Mode: "NX", TTL: s.ttl}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("restore edit session: %w", err)
	}
	return nil
}

func (s *RedisStore) Cancel(ctx context.Context, moderatorID string) (models.Key, bool, error) {
	v, err := s.client.GetDel(ctx, keyPrefix+moderatorID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cancel edit session: %w", err)
	}
	return models.Key(v), true, nil
}
