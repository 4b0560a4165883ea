package clock

import (
	"context"
	"testing"
	"time"
)

func TestReal_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Real{}.Sleep(ctx, time.Minute)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("sleep did not return promptly after cancel")
	}
}

func TestReal_SleepZero(t *testing.T) {
	if err := (Real{}).Sleep(context.Background(), 0); err != nil {
		t.Errorf("zero sleep returned %v", err)
	}
}

func TestFake(t *testing.T) {
	start := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if err := f.Sleep(context.Background(), 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	f.Advance(time.Minute)

	if got := f.Now().Sub(start); got != 6*time.Minute {
		t.Errorf("elapsed = %v, want 6m", got)
	}
	if s := f.Sleeps(); len(s) != 1 || s[0] != 5*time.Minute {
		t.Errorf("sleeps = %v", s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.Sleep(ctx, time.Second); err == nil {
		t.Error("expected error from cancelled sleep")
	}
}
