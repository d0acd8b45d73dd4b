//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"relay/internal/settings/models"
	"relay/pkg/testutil/containers"
)

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &StoreSuite{newStore: func() Store {
		if err := rc.FlushAll(context.Background()); err != nil {
			t.Fatalf("flush redis: %v", err)
		}
		return NewRedis(rc.Client, time.Minute)
	}})
}

func TestRedisSessionExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	store := NewRedis(rc.Client, time.Second)

	if err := store.Begin(ctx, "ttl-mod", models.KeyGreetingUser); err != nil {
		t.Fatal(err)
	}
	ttl, err := rc.Client.TTL(ctx, keyPrefix+"ttl-mod").Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}
