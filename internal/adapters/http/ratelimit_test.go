package httpadapter

import (
	"testing"
	"time"
)

func TestSlidingWindowAllowsUpToLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewSlidingWindowLimiter(10, time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 10; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("request %d within the limit was rejected", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("request 11 must be rejected")
	}
}

func TestSlidingWindowResetsAfterWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewSlidingWindowLimiter(10, time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 10; i++ {
		limiter.Allow("1.2.3.4")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("limit should be exhausted")
	}

	now = now.Add(61 * time.Second)
	if !limiter.Allow("1.2.3.4") {
		t.Fatal("window should have reset after 61s")
	}
}

func TestSlidingWindowPartialExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewSlidingWindowLimiter(3, time.Minute).WithClock(func() time.Time { return now })

	limiter.Allow("k") // t=0
	now = now.Add(30 * time.Second)
	limiter.Allow("k") // t=30
	limiter.Allow("k") // t=30
	if limiter.Allow("k") {
		t.Fatal("limit of 3 reached, 4th must be rejected")
	}

	// Only the first entry has aged out; two remain.
	now = now.Add(31 * time.Second)
	if !limiter.Allow("k") {
		t.Fatal("one slot should be free after the oldest entry expired")
	}
	if limiter.Allow("k") {
		t.Fatal("window should be full again")
	}
}

func TestSlidingWindowRejectionsAreNotRecorded(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewSlidingWindowLimiter(2, time.Minute).WithClock(func() time.Time { return now })

	limiter.Allow("k")
	limiter.Allow("k")
	for i := 0; i < 50; i++ {
		limiter.Allow("k")
	}

	// Hammering while limited must not extend the block past the original
	// window.
	now = now.Add(61 * time.Second)
	if !limiter.Allow("k") {
		t.Fatal("rejected attempts must not refresh the window")
	}
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewSlidingWindowLimiter(1, time.Minute).WithClock(func() time.Time { return now })

	if !limiter.Allow("a") {
		t.Fatal("first key should be allowed")
	}
	if !limiter.Allow("b") {
		t.Fatal("second key must have its own window")
	}
	if limiter.Allow("a") {
		t.Fatal("first key should now be limited")
	}
}

func TestSlidingWindowRetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewSlidingWindowLimiter(1, time.Minute).WithClock(func() time.Time { return now })

	limiter.Allow("k")
	if d := limiter.RetryAfter("k"); d != time.Minute {
		t.Fatalf("expected 60s retry-after, got %v", d)
	}

	now = now.Add(45 * time.Second)
	if d := limiter.RetryAfter("k"); d != 15*time.Second {
		t.Fatalf("expected 15s retry-after, got %v", d)
	}

	now = now.Add(16 * time.Second)
	if d := limiter.RetryAfter("k"); d != 0 {
		t.Fatalf("expected no wait, got %v", d)
	}
}

func TestSlidingWindowZeroLimitDisables(t *testing.T) {
	limiter := NewSlidingWindowLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("k") {
			t.Fatal("zero limit must disable the limiter")
		}
	}
}
