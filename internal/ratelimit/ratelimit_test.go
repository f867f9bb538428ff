package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 3})
	defer limiter.Stop()

	userID := "user-12345"

	for i := 0; i < 3; i++ {
		if !limiter.Allow(userID) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow(userID) {
		t.Error("Fourth request should be blocked due to rate limit")
	}
}

func TestLimiter_DifferentUsers(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 1})
	defer limiter.Stop()

	if !limiter.Allow("user-a") {
		t.Error("First user should be allowed")
	}
	if !limiter.Allow("user-b") {
		t.Error("Second user should be allowed independently")
	}
	if limiter.Allow("user-a") {
		t.Error("First user's second request should be blocked")
	}
}

func TestLimiter_RemainingRequests(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 5})
	defer limiter.Stop()

	userID := "user-rem"

	if got := limiter.RemainingRequests(userID); got != 5 {
		t.Errorf("RemainingRequests() = %d, want 5", got)
	}

	limiter.Allow(userID)
	limiter.Allow(userID)

	if got := limiter.RemainingRequests(userID); got != 3 {
		t.Errorf("RemainingRequests() = %d, want 3", got)
	}
}

func TestLimiter_ResetTime(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 1})
	defer limiter.Stop()

	userID := "user-reset"
	before := time.Now()

	limiter.Allow(userID)

	reset := limiter.ResetTime(userID)
	if reset.Before(before) {
		t.Error("ResetTime should be in the future after a request")
	}
	if reset.After(before.Add(2 * time.Minute)) {
		t.Error("ResetTime should be within the window")
	}
}

func TestLimiter_DefaultLimit(t *testing.T) {
	limiter := New(Config{})
	defer limiter.Stop()

	userID := "user-default"
	for i := 0; i < 10; i++ {
		if !limiter.Allow(userID) {
			t.Errorf("Request %d should be allowed with default limit", i+1)
		}
	}
	if limiter.Allow(userID) {
		t.Error("Eleventh request should be blocked with default limit of 10")
	}
}

func TestLimiter_StopIdempotent(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 1})
	limiter.Stop()
	limiter.Stop()
}
