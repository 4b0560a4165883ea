package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/demo"
	"github.com/rmax-ai/pganomaly/pkg/schedule"
	"github.com/rmax-ai/pganomaly/pkg/traffic"
)

var _ demo.Observer = (*Recorder)(nil)

func TestRecorder_WritesRunHistory(t *testing.T) {
	s := setupTestStore(t)
	rec := NewRecorder(s, "run-7", nil)
	start := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)

	rec.TargetStarted("db1")
	rec.RoundStarted("db1", 1)
	rec.ScenarioFinished("db1", schedule.Execution{
		Round:    1,
		Scenario: catalog.Scenario{Ordinal: 1, Name: "test_01_exfil.sql", DisplayName: "Data Exfiltration", Kind: catalog.KindScript},
		Outcome:  schedule.Outcome{Executed: 4, Failed: 1, Aborted: true, Err: errors.New("permission denied")},
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
	})
	rec.GeneratorStopped("db1", traffic.Stats{Cycles: 3, StatementsExecuted: 17})
	rec.CleanupFinished("db1", nil)
	rec.TargetFinished(demo.TargetSummary{Target: "db1", ScenariosRun: 1, ScenariosFailed: 1, StatementsExecuted: 17})

	events, err := s.QueryEvents(context.Background(), EventFilter{RunID: "run-7"})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(events))
	}

	scenarios, _ := s.QueryEvents(context.Background(), EventFilter{EventTypes: []EventType{EventTypeScenarioExecuted}})
	if len(scenarios) != 1 {
		t.Fatalf("expected 1 scenario event, got %d", len(scenarios))
	}
	var p ScenarioPayload
	if err := json.Unmarshal(scenarios[0].Payload, &p); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if p.Succeeded || !p.Aborted || p.Error != "permission denied" || p.DurationMs != 1500 {
		t.Errorf("unexpected payload %+v", p)
	}
	if p.DisplayName != "Data Exfiltration" || p.Kind != "script" {
		t.Errorf("unexpected scenario identity %+v", p)
	}

	finished, _ := s.QueryEvents(context.Background(), EventFilter{EventTypes: []EventType{EventTypeTargetFinished}})
	var tp TargetPayload
	if err := json.Unmarshal(finished[0].Payload, &tp); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if tp.StatementsExecuted != 17 || tp.ScenariosRun != 1 {
		t.Errorf("unexpected target payload %+v", tp)
	}
}

type failingAppender struct{ calls int }

func (f *failingAppender) AppendEvent(context.Context, *Event) error {
	f.calls++
	return errors.New("database is locked")
}

func TestRecorder_AppendFailureIsSwallowed(t *testing.T) {
	app := &failingAppender{}
	rec := NewRecorder(app, "run-8", nil)

	rec.TargetStarted("db1")
	rec.TargetSkipped("db1", errors.New("connection refused"))

	if app.calls != 2 {
		t.Errorf("expected 2 append attempts, got %d", app.calls)
	}
}
