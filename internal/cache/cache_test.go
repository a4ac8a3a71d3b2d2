// SPDX-License-Identifier: MIT

package cache

import (
	"strings"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", "v", time.Minute)
	val, found := c.Get("k")
	if !found {
		t.Fatal("expected value to be found")
	}
	if val != "v" {
		t.Errorf("expected 'v', got %v", val)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", "v", -time.Second) // already expired
	if _, found := c.Get("k"); found {
		t.Fatal("expected expired value to be a miss")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestMemoryCacheDeleteClear(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Delete("a")
	if _, found := c.Get("a"); found {
		t.Error("expected deleted key to be gone")
	}

	c.Clear()
	if _, found := c.Get("b"); found {
		t.Error("expected cleared key to be gone")
	}
}

func TestMemoryCacheJanitor(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond).(*memoryCache)
	defer c.Stop()

	c.Set("k", "v", time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	stats := c.Stats()
	if stats.CurrentSize != 0 {
		t.Errorf("expected janitor to evict expired entry, size=%d", stats.CurrentSize)
	}
}

func TestHashKeyStableAndOpaque(t *testing.T) {
	k1 := HashKey("some content")
	k2 := HashKey("some content")
	k3 := HashKey("other content")

	if k1 != k2 {
		t.Error("expected identical content to hash identically")
	}
	if k1 == k3 {
		t.Error("expected different content to hash differently")
	}
	if !strings.HasPrefix(k1, "decision:") {
		t.Errorf("expected decision: prefix, got %q", k1)
	}
	if strings.Contains(k1, "some content") {
		t.Error("raw content must not appear in the key")
	}
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	c.Set("k", "v", time.Minute)
	if _, found := c.Get("k"); found {
		t.Error("no-op cache must never return values")
	}
}
