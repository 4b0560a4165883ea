package client

import (
	"encoding/json"
	"time"
)

// Health is the /v1/health response.
type Health struct {
	Status string `json:"status"`
}

// Event is one entry of the run history.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	RunID         string          `json:"run_id"`
	Target        string          `json:"target"`
	TsEvent       time.Time       `json:"ts_event"`
	TsIngest      time.Time       `json:"ts_ingest"`
	Payload       json.RawMessage `json:"payload"`
}

// GeneratorStats are the background traffic counters of one target.
type GeneratorStats struct {
	Cycles             uint64 `json:"cycles"`
	StatementsExecuted uint64 `json:"statements_executed"`
	StatementsFailed   uint64 `json:"statements_failed"`
	ErrorsInjected     uint64 `json:"errors_injected"`
	Transactional      uint64 `json:"transactional"`
	Analytical         uint64 `json:"analytical"`
	ConnectFailures    uint64 `json:"connect_failures"`
}

// TargetStatus is the live progress of one target.
type TargetStatus struct {
	RunID           string          `json:"run_id"`
	Target          string          `json:"target"`
	Phase           string          `json:"phase"`
	Round           int             `json:"round"`
	Scenario        string          `json:"scenario,omitempty"`
	ScenariosRun    int             `json:"scenarios_run"`
	ScenariosFailed int             `json:"scenarios_failed"`
	Generator       *GeneratorStats `json:"generator,omitempty"`
	Error           string          `json:"error,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Run summarises one recorded demo run.
type Run struct {
	RunID     string    `json:"run_id"`
	Started   time.Time `json:"started"`
	LastEvent time.Time `json:"last_event"`
	Targets   int       `json:"targets"`
	Events    int       `json:"events"`
}

// EventsOptions filters GetEvents. Zero values match everything.
type EventsOptions struct {
	Limit  int
	RunID  string
	Target string
	Type   string
}

// ReportOptions selects a CSV report.
type ReportOptions struct {
	Type   string // scenarios, summary or events
	RunID  string
	Target string
	From   time.Time
	To     time.Time
}
