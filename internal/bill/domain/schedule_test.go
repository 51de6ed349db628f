package domain

import (
	"testing"
	"time"
)

func TestComputeScheduledAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 12, 16, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	lead := func(n int) *int { return &n }

	if got := ComputeScheduledAt(nil, start, end, now); !got.Equal(now) {
		t.Fatalf("nil lead hours: got %v, want now", got)
	}
	if got := ComputeScheduledAt(lead(0), start, end, now); !got.Equal(now) {
		t.Fatalf("zero lead hours: got %v, want now", got)
	}
	if got := ComputeScheduledAt(lead(-1), start, end, now); !got.Equal(end) {
		t.Fatalf("after consultation: got %v, want end", got)
	}
	if got := ComputeScheduledAt(lead(24), start, end, now); !got.Equal(start.Add(-24*time.Hour)) {
		t.Fatalf("24h lead: got %v", got)
	}
}

func TestDueNow(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if !DueNow(nil, now) {
		t.Fatal("missing schedule must be due")
	}
	if !DueNow(&past, now) {
		t.Fatal("past schedule must be due")
	}
	if !DueNow(&now, now) {
		t.Fatal("schedule equal to now must be due")
	}
	if DueNow(&future, now) {
		t.Fatal("future schedule must not be due")
	}
}
