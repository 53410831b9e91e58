package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitWithinBurst(t *testing.T) {
	l := NewProviderLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	for i := 0; i < 2; i++ {
		if err := l.Wait(context.Background(), "scraper"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}

func TestWaitFailsFastPastDeadline(t *testing.T) {
	l := NewProviderLimiter(RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1})
	if err := l.Wait(context.Background(), "scraper"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx, "scraper")
	if !errors.Is(err, ErrWouldExceedDeadline) {
		t.Fatalf("expected ErrWouldExceedDeadline, got %v", err)
	}
	if time.Since(start) > 40*time.Millisecond {
		t.Fatal("wait should fail without sleeping")
	}
}

func TestLimitsArePerProvider(t *testing.T) {
	l := NewProviderLimiter(RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "serpapi"); err != nil {
		t.Fatalf("serpapi: %v", err)
	}
	if err := l.Wait(ctx, "amadeus"); err != nil {
		t.Fatalf("amadeus should have its own bucket: %v", err)
	}
}

func TestNonPositiveRateDisablesLimit(t *testing.T) {
	l := NewProviderLimiterWithDefaults()
	l.SetProviderLimit("amadeus", 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx, "amadeus"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}
