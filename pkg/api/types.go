package api

import (
	"context"
	"time"

	"github.com/rmax-ai/pganomaly/pkg/demo"
	"github.com/rmax-ai/pganomaly/pkg/store"
)

// StoreInterface is the slice of the history store the API reads.
type StoreInterface interface {
	QueryEvents(ctx context.Context, filter store.EventFilter) ([]*store.Event, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunInfo, error)
	PruneEvents(ctx context.Context, retention time.Duration) (int64, error)
}

// StatusSource supplies live per-target progress.
type StatusSource interface {
	List(ctx context.Context) ([]demo.Status, error)
}

// TrackerSource adapts an in-process tracker to StatusSource.
type TrackerSource struct {
	Tracker *demo.Tracker
}

func (t TrackerSource) List(context.Context) ([]demo.Status, error) {
	return t.Tracker.List(), nil
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	Targets []demo.Status `json:"targets"`
}

// PruneRequest is the body of POST /v1/admin/prune.
type PruneRequest struct {
	Retention string `json:"retention"` // e.g. "720h"
}

// PruneResponse is returned by POST /v1/admin/prune.
type PruneResponse struct {
	Status        string `json:"status"`
	PrunedCount   int64  `json:"pruned_count"`
	RetentionUsed string `json:"retention_used"`
}
