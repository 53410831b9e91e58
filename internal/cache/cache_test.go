package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMemoryTokenCacheExpires(t *testing.T) {
	c := NewMemoryTokenCache()
	now := time.Date(2025, 7, 20, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "amadeus", "tok", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if got, ok := c.Get(ctx, "amadeus"); !ok || got != "tok" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get(ctx, "amadeus"); ok {
		t.Fatal("expected token to expire")
	}
}

func TestMemoryTokenCacheDelete(t *testing.T) {
	c := NewMemoryTokenCache()
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", time.Hour)
	_ = c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected deleted token to be gone")
	}
}

func TestMemoryTokenCacheIgnoresNonPositiveTTL(t *testing.T) {
	c := NewMemoryTokenCache()
	_ = c.Set(context.Background(), "k", "v", 0)
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatal("zero ttl should not store")
	}
}

func TestGenerateKeyHidesIdentity(t *testing.T) {
	key := generateKey("client-id-123")
	if !strings.HasPrefix(key, "token:") || strings.Contains(key, "client-id-123") {
		t.Fatalf("unexpected key %q", key)
	}
	if key != generateKey("client-id-123") {
		t.Fatal("key should be deterministic")
	}
}
