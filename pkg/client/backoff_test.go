package client

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestExponentialBackoff_Next(t *testing.T) {
	b := &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Max:    1 * time.Second,
		Factor: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second}, // Capped at Max
		{60, 1 * time.Second},
	}

	for _, tt := range tests {
		got := b.Next(tt.attempt)
		if got != tt.expected {
			t.Errorf("Next(%d) = %v; want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	tests := []struct {
		random float64
		want   time.Duration
	}{
		{0, 90 * time.Millisecond},
		{0.5, 100 * time.Millisecond},
		{0.75, 105 * time.Millisecond},
	}
	for _, tt := range tests {
		b := &ExponentialBackoff{
			Base:   100 * time.Millisecond,
			Max:    5 * time.Second,
			Factor: 2.0,
			Jitter: 0.1,
			Rand:   func() float64 { return tt.random },
		}
		if got := b.Next(0); got != tt.want {
			t.Errorf("Next(0) with rand %v = %v; want %v", tt.random, got, tt.want)
		}
	}

	b := DefaultBackoff()
	for i := 0; i < 100; i++ {
		if got := b.Next(50); got > time.Duration(float64(b.Max)*(1+b.Jitter)) {
			t.Fatalf("Next(50) = %v exceeds jittered cap", got)
		}
	}
}

func TestRetryWait(t *testing.T) {
	b := &ExponentialBackoff{Base: time.Second, Max: time.Minute, Factor: 2}

	if got := retryWait(b, 1, errors.New("connection reset")); got != 2*time.Second {
		t.Errorf("network error: got %v, want 2s", got)
	}
	if got := retryWait(b, 1, &StatusError{Code: 502}); got != 2*time.Second {
		t.Errorf("no Retry-After: got %v, want 2s", got)
	}
	if got := retryWait(b, 1, &StatusError{Code: 503, RetryAfter: 7 * time.Second}); got != 7*time.Second {
		t.Errorf("Retry-After: got %v, want 7s", got)
	}
	if got := retryWait(b, 0, &StatusError{Code: 503, RetryAfter: time.Hour}); got != maxRetryAfter {
		t.Errorf("long Retry-After: got %v, want %v", got, maxRetryAfter)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{" 10 ", 10 * time.Second},
		{"-4", 0},
		{"soon", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		if got := parseRetryAfter(h, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v; want %v", tt.value, got, tt.want)
		}
	}
}
