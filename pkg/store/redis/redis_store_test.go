package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/pganomaly/pkg/demo"
	"github.com/rmax-ai/pganomaly/pkg/traffic"
)

var _ demo.StatusSink = (*StatusStore)(nil)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestStatusStore(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewStatusStore(client, time.Hour)
	ctx := context.Background()

	t.Run("Publish and Get", func(t *testing.T) {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		st := demo.Status{
			RunID:     "run-1",
			Target:    "db1",
			Phase:     demo.PhaseScenarios,
			Round:     2,
			Scenario:  "Data Exfiltration",
			Generator: &traffic.Stats{StatementsExecuted: 12},
		}
		if err := store.Publish(ctx, st); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		got, ok, err := store.Get(ctx, "db1")
		if err != nil || !ok {
			t.Fatalf("Get failed: ok=%v err=%v", ok, err)
		}
		if got.Phase != demo.PhaseScenarios || got.Round != 2 || got.Scenario != "Data Exfiltration" {
			t.Errorf("status mismatch: got %+v", got)
		}
		if got.Generator == nil || got.Generator.StatementsExecuted != 12 {
			t.Errorf("generator stats lost: %+v", got.Generator)
		}
		if ttl := mr.TTL(store.makeKey("db1")); ttl != time.Hour {
			t.Errorf("expected 1h ttl, got %s", ttl)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		store.Clear(ctx)
		_, ok, err := store.Get(ctx, "nope")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if ok {
			t.Error("expected missing status")
		}
	})

	t.Run("List sorted and overwritten", func(t *testing.T) {
		store.Clear(ctx)
		for _, st := range []demo.Status{
			{Target: "db2", Phase: demo.PhaseBaseline},
			{Target: "db1", Phase: demo.PhaseConnecting},
			{Target: "db1", Phase: demo.PhaseFinished},
		} {
			if err := store.Publish(ctx, st); err != nil {
				t.Fatalf("Publish failed: %v", err)
			}
		}

		all, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 statuses, got %d", len(all))
		}
		if all[0].Target != "db1" || all[0].Phase != demo.PhaseFinished {
			t.Errorf("unexpected first status %+v", all[0])
		}
		if all[1].Target != "db2" {
			t.Errorf("unexpected second status %+v", all[1])
		}
	})

	t.Run("List skips expired", func(t *testing.T) {
		store.Clear(ctx)
		store.Publish(ctx, demo.Status{Target: "db1"})
		mr.Del(store.makeKey("db1"))

		all, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 0 {
			t.Errorf("expected no statuses, got %d", len(all))
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store.Publish(ctx, demo.Status{Target: "db1"})
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		all, _ := store.List(ctx)
		if len(all) != 0 {
			t.Errorf("expected no statuses after clear, got %d", len(all))
		}
	})
}

func TestStatusStore_WithTracker(t *testing.T) {
	_, client := newTestClient(t)
	store := NewStatusStore(client, 0)
	tracker := demo.NewTracker("run-3", nil, store)

	tracker.TargetStarted("db1")
	tracker.RoundStarted("db1", 1)

	got, ok, err := store.Get(context.Background(), "db1")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if got.RunID != "run-3" || got.Phase != demo.PhaseScenarios || got.Round != 1 {
		t.Errorf("unexpected status %+v", got)
	}
}

func TestStatusStore_Unavailable(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewStatusStore(client, time.Minute)
	mr.Close()

	if err := store.Publish(context.Background(), demo.Status{Target: "db1"}); err == nil {
		t.Error("expected publish error when redis is down")
	}
}
