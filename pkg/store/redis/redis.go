package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/pganomaly/pkg/demo"
)

const (
	keyPrefix  = "pganomaly:"
	targetsSet = keyPrefix + "targets"
	// DefaultStatusTTL keeps a finished run visible for a day.
	DefaultStatusTTL = 24 * time.Hour
)

// StatusStore publishes per-target demo status to Redis so other processes
// (API, TUI) can read it. It implements demo.StatusSink.
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusStore(client *redis.Client, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusStore{client: client, ttl: ttl}
}

func (s *StatusStore) makeKey(target string) string {
	return fmt.Sprintf("%sstatus:%s", keyPrefix, target)
}

// Publish stores the latest status of one target.
func (s *StatusStore) Publish(ctx context.Context, st demo.Status) error {
	key := s.makeKey(st.Target)
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, s.ttl)
	pipe.SAdd(ctx, targetsSet, key)
	pipe.Expire(ctx, targetsSet, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish status for %s: %w", st.Target, err)
	}
	return nil
}

// Get returns the status of one target.
func (s *StatusStore) Get(ctx context.Context, target string) (demo.Status, bool, error) {
	data, err := s.client.Get(ctx, s.makeKey(target)).Result()
	if err == redis.Nil {
		return demo.Status{}, false, nil
	}
	if err != nil {
		return demo.Status{}, false, fmt.Errorf("failed to get status for %s: %w", target, err)
	}
	var st demo.Status
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return demo.Status{}, false, fmt.Errorf("failed to decode status for %s: %w", target, err)
	}
	return st, true, nil
}

// List returns every published status, sorted by target. Expired entries
// are skipped.
func (s *StatusStore) List(ctx context.Context) ([]demo.Status, error) {
	keys, err := s.client.SMembers(ctx, targetsSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	if len(keys) == 0 {
		return []demo.Status{}, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read statuses: %w", err)
	}

	out := make([]demo.Status, 0, len(values))
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var st demo.Status
		if err := json.Unmarshal([]byte(str), &st); err != nil {
			return nil, fmt.Errorf("failed to decode status %s: %w", keys[i], err)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out, nil
}

// Clear removes every published status.
func (s *StatusStore) Clear(ctx context.Context) error {
	keys, err := s.client.SMembers(ctx, targetsSet).Result()
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}
	keys = append(keys, targetsSet)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear statuses: %w", err)
	}
	return nil
}
