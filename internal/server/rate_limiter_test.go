package server

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := newRateLimiter(2, time.Minute)

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatal("first requests within limit must pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("request over limit must be rejected")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("other callers keep their own window")
	}
	if limiter.Allow("") {
		t.Fatal("empty key must be rejected")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter := newRateLimiter(1, 10*time.Millisecond)

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first request must pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("second request in window must fail")
	}
	time.Sleep(15 * time.Millisecond)
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("request after window reset must pass")
	}
}
