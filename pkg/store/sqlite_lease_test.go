package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLeaseAcquire(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	name := "target:db1"
	ttl := time.Minute

	acquired, err := s.Acquire(ctx, name, "run-1", ttl)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire new lease")
	}

	l, err := s.Get(ctx, name)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if l.HolderID != "run-1" || l.Version != 1 {
		t.Errorf("unexpected lease %+v", l)
	}

	// Same holder re-acquires.
	acquired, err = s.Acquire(ctx, name, "run-1", ttl)
	if err != nil {
		t.Fatalf("Acquire (renew) failed: %v", err)
	}
	if !acquired {
		t.Error("expected holder to re-acquire its lease")
	}
	l2, _ := s.Get(ctx, name)
	if l2.Version <= l.Version {
		t.Errorf("expected version increase, got %d -> %d", l.Version, l2.Version)
	}

	// Another run is refused while the lease is valid.
	acquired, err = s.Acquire(ctx, name, "run-2", ttl)
	if err != nil {
		t.Fatalf("Acquire (steal) failed: %v", err)
	}
	if acquired {
		t.Error("should not acquire a valid lease held by another run")
	}

	// Expired leases can be taken over.
	if _, err := s.db.Exec("UPDATE leases SET expires_at = ?", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("expire lease: %v", err)
	}
	acquired, err = s.Acquire(ctx, name, "run-2", ttl)
	if err != nil {
		t.Fatalf("Acquire (takeover) failed: %v", err)
	}
	if !acquired {
		t.Error("expected to take over expired lease")
	}
	l3, _ := s.Get(ctx, name)
	if l3.HolderID != "run-2" {
		t.Errorf("expected holder run-2, got %s", l3.HolderID)
	}
}

func TestLeaseRenew(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "target:db1", "run-1", time.Minute); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := s.Renew(ctx, "target:db1", "run-1", time.Minute); err != nil {
		t.Fatalf("Renew failed: %v", err)
	}

	if _, err := s.db.Exec("UPDATE leases SET holder_id = 'run-9' WHERE name = ?", "target:db1"); err != nil {
		t.Fatalf("steal lease: %v", err)
	}
	if err := s.Renew(ctx, "target:db1", "run-1", time.Minute); !errors.Is(err, ErrLeaseLost) {
		t.Errorf("expected ErrLeaseLost, got %v", err)
	}
}

func TestLeaseRelease(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "target:db1", "run-1", time.Minute); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Releasing someone else's lease is a no-op.
	if err := s.Release(ctx, "target:db1", "run-2"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if l, _ := s.Get(ctx, "target:db1"); l == nil {
		t.Fatal("lease released by non-holder")
	}

	if err := s.Release(ctx, "target:db1", "run-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if l, _ := s.Get(ctx, "target:db1"); l != nil {
		t.Errorf("expected lease to be gone, got %+v", l)
	}

	if err := s.Release(ctx, "target:db1", "run-1"); err != nil {
		t.Fatalf("Release (idempotent) failed: %v", err)
	}
}

func TestLeaseGet_Missing(t *testing.T) {
	s := setupTestStore(t)
	l, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if l != nil {
		t.Errorf("expected nil, got %+v", l)
	}
}
