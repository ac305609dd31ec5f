package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

func stubRedis(t *testing.T, pingErr error) *string {
	t.Helper()
	origNewClient := newRedisClient
	origPing := pingRedis
	t.Cleanup(func() {
		newRedisClient = origNewClient
		pingRedis = origPing
		Client = nil
	})

	var capturedAddr string
	newRedisClient = func(opts *redis.Options) *redis.Client {
		capturedAddr = opts.Addr
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return pingErr
	}
	return &capturedAddr
}

func TestInitRedisWithCustomAddr(t *testing.T) {
	t.Setenv("REDIS_URL", "redis:9999")
	addr := stubRedis(t, nil)

	InitRedis(context.Background())
	if *addr != "redis:9999" {
		t.Fatalf("expected custom addr, got %s", *addr)
	}
	if Client == nil {
		t.Fatal("expected client to be set")
	}
}

func TestInitRedisParsesURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache.internal:6380/2")
	addr := stubRedis(t, nil)

	InitRedis(context.Background())
	if *addr != "cache.internal:6380" {
		t.Fatalf("expected parsed addr, got %s", *addr)
	}
}

func TestInitRedisDisabledWithoutURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	addr := stubRedis(t, nil)

	InitRedis(context.Background())
	if Client != nil || *addr != "" {
		t.Fatal("expected redis to stay disabled")
	}
}

func TestInitRedisUnreachableDisablesCache(t *testing.T) {
	t.Setenv("REDIS_URL", "redis:6379")
	stubRedis(t, errors.New("connection refused"))

	InitRedis(context.Background())
	if Client != nil {
		t.Fatal("expected nil client when ping fails")
	}
}
