package store

import (
	"context"
	"encoding/json"
	"time"
)

// EventType represents the kind of event.
type EventType string

const (
	EventTypeTargetStarted    EventType = "target_started"
	EventTypeTargetSkipped    EventType = "target_skipped"
	EventTypeBaselineStarted  EventType = "baseline_started"
	EventTypeRoundStarted     EventType = "round_started"
	EventTypeScenarioExecuted EventType = "scenario_executed"
	EventTypeGeneratorStopped EventType = "generator_stopped"
	EventTypeCleanupFinished  EventType = "cleanup_finished"
	EventTypeTargetFinished   EventType = "target_finished"
)

// SchemaVersion is written on every event.
const SchemaVersion = 1

// EventID is a unique identifier for an event.
type EventID string

// Event is one entry of the append-only run history.
type Event struct {
	EventID       EventID         `json:"event_id"`
	EventType     EventType       `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	RunID         string          `json:"run_id"`
	Target        string          `json:"target"`
	TsEvent       time.Time       `json:"ts_event"`
	TsIngest      time.Time       `json:"ts_ingest"`
	Payload       json.RawMessage `json:"payload"`
}

// EventFilter defines filters for querying events. Zero values match
// everything.
type EventFilter struct {
	From       time.Time
	To         time.Time
	RunID      string
	Target     string
	EventTypes []EventType
	Limit      int
}

// RunInfo summarises one demo run in the history.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Started   time.Time `json:"started"`
	LastEvent time.Time `json:"last_event"`
	Targets   int       `json:"targets"`
	Events    int       `json:"events"`
}

// Lease is a time-bounded claim on a named resource, such as a target
// being driven by a run.
type Lease struct {
	Name      string    `json:"name"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   int64     `json:"version"`
}

// LeaseStore defines the interface for acquiring and renewing leases.
type LeaseStore interface {
	// Acquire tries to acquire the lease. Returns true if successful.
	// If the lease is already held by holderID, it renews it.
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)

	// Renew updates the expiry of an existing lease held by holderID.
	// Returns ErrLeaseLost if it is held by someone else or gone.
	Renew(ctx context.Context, name, holderID string, ttl time.Duration) error

	// Release releases the lease if held by holderID.
	Release(ctx context.Context, name, holderID string) error

	// Get returns the current lease state, or nil when nobody holds it.
	Get(ctx context.Context, name string) (*Lease, error)
}
