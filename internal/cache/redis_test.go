// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	c := &RedisCache{
		client: client,
		logger: zerolog.Nop(),
	}

	return mr, c
}

func TestRedisCacheSetGet(t *testing.T) {
	mr, c := setupMiniRedis(t)
	defer mr.Close()

	c.Set(HashKey("bad text"), "blocked", 5*time.Minute)

	val, found := c.Get(HashKey("bad text"))
	if !found {
		t.Fatal("expected value to be found")
	}
	if val != "blocked" {
		t.Errorf("expected 'blocked', got %v", val)
	}

	stats := c.Stats()
	if stats.Sets != 1 || stats.Hits != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRedisCacheMiss(t *testing.T) {
	mr, c := setupMiniRedis(t)
	defer mr.Close()

	if _, found := c.Get("nope"); found {
		t.Error("expected miss")
	}
	if got := c.Stats().Misses; got != 1 {
		t.Errorf("expected 1 miss, got %d", got)
	}
}

func TestRedisCacheTTL(t *testing.T) {
	mr, c := setupMiniRedis(t)
	defer mr.Close()

	c.Set("k", "v", time.Minute)
	mr.FastForward(2 * time.Minute)

	if _, found := c.Get("k"); found {
		t.Error("expected value to expire")
	}
}

func TestRedisCacheStructuredValue(t *testing.T) {
	mr, c := setupMiniRedis(t)
	defer mr.Close()

	c.Set("k", map[string]any{"outcome": "blocked", "severity": 4}, time.Minute)

	val, found := c.Get("k")
	if !found {
		t.Fatal("expected value to be found")
	}
	m, ok := val.(map[string]any)
	if !ok {
		t.Fatalf("expected map value, got %T", val)
	}
	if m["outcome"] != "blocked" {
		t.Errorf("unexpected value: %v", m)
	}
}

func TestRedisCacheHealthCheck(t *testing.T) {
	mr, c := setupMiniRedis(t)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy redis: %v", err)
	}

	mr.Close()
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check to fail after close")
	}
}
