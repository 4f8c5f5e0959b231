package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheExpiry(t *testing.T) {
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(10)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	v, ok, _ := c.Get(ctx, "k")
	if !ok || string(v) != "v" {
		t.Errorf("Expected hit with v, got %q %v", v, ok)
	}

	clock = clock.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Expected entry to expire after its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, got %d entries", c.Len())
	}
}

func TestMemoryCacheExpiredReadKeepsConcurrentSet(t *testing.T) {
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(10)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("old"), time.Minute); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	clock = clock.Add(2 * time.Minute)

	// The first clock read inside Get happens after the read lock is
	// released; refresh the key right there.
	refreshed := false
	c.now = func() time.Time {
		if !refreshed {
			refreshed = true
			if err := c.Set(ctx, "k", []byte("new"), time.Minute); err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		}
		return clock
	}

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Expected the stale read to miss")
	}
	v, ok, _ := c.Get(ctx, "k")
	if !ok || string(v) != "new" {
		t.Errorf("Expected refreshed value new, got %q %v", v, ok)
	}
}

func TestMemoryCacheZeroTTLIsNoop(t *testing.T) {
	c := NewMemoryCache(10)
	_ = c.Set(context.Background(), "k", []byte("v"), 0)

	if _, ok, _ := c.Get(context.Background(), "k"); ok {
		t.Error("Expected zero TTL to disable caching")
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(2)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("1"), time.Minute)
	_ = c.Set(ctx, "long", []byte("2"), time.Hour)
	_ = c.Set(ctx, "new", []byte("3"), time.Hour)

	if c.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "short"); ok {
		t.Error("Expected the entry closest to expiry to be evicted")
	}
	if _, ok, _ := c.Get(ctx, "long"); !ok {
		t.Error("Expected long-lived entry to survive")
	}
}

func TestRedisCacheUnreachable(t *testing.T) {
	c := NewRedisCache(RedisConfig{Addr: "127.0.0.1:1"})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, _, err := c.Get(ctx, "k"); err == nil {
		t.Error("Expected an error from an unreachable redis")
	}
}
