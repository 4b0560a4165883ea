package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/demo"
	"github.com/rmax-ai/pganomaly/pkg/schedule"
	"github.com/rmax-ai/pganomaly/pkg/traffic"
)

// EventAppender is the write side of the history.
type EventAppender interface {
	AppendEvent(ctx context.Context, evt *Event) error
}

// Recorder is a demo.Observer that appends every notification to the run
// history. Write failures are logged and never interrupt the demo.
type Recorder struct {
	demo.NopObserver

	appender EventAppender
	runID    string
	logger   *zap.Logger
	now      func() time.Time
}

func NewRecorder(appender EventAppender, runID string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{appender: appender, runID: runID, logger: logger, now: time.Now}
}

// ScenarioPayload is written with EventTypeScenarioExecuted.
type ScenarioPayload struct {
	Round       int    `json:"round"`
	Ordinal     int    `json:"ordinal"`
	Scenario    string `json:"scenario"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	Succeeded   bool   `json:"succeeded"`
	Executed    int    `json:"executed"`
	Failed      int    `json:"failed"`
	Aborted     bool   `json:"aborted"`
	Interrupted bool   `json:"interrupted"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// TargetPayload is written with EventTypeTargetFinished.
type TargetPayload struct {
	Skipped            bool          `json:"skipped"`
	Interrupted        bool          `json:"interrupted"`
	Error              string        `json:"error,omitempty"`
	CleanupError       string        `json:"cleanup_error,omitempty"`
	StatementsExecuted uint64        `json:"statements_executed"`
	ErrorsInjected     uint64        `json:"errors_injected"`
	ScenariosRun       int           `json:"scenarios_run"`
	ScenariosFailed    int           `json:"scenarios_failed"`
	Rounds             int           `json:"rounds"`
	Generator          traffic.Stats `json:"generator"`
	DurationMs         int64         `json:"duration_ms"`
}

func (r *Recorder) record(target string, typ EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("event_marshal_failed", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	now := r.now().UTC()
	evt := &Event{
		EventID:       EventID(uuid.NewString()),
		EventType:     typ,
		SchemaVersion: SchemaVersion,
		RunID:         r.runID,
		Target:        target,
		TsEvent:       now,
		TsIngest:      now,
		Payload:       data,
	}
	if err := r.appender.AppendEvent(context.Background(), evt); err != nil {
		r.logger.Warn("event_append_failed", zap.String("type", string(typ)), zap.Error(err))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r *Recorder) TargetStarted(target string) {
	r.record(target, EventTypeTargetStarted, struct{}{})
}

func (r *Recorder) TargetSkipped(target string, err error) {
	r.record(target, EventTypeTargetSkipped, map[string]string{"error": errString(err)})
}

func (r *Recorder) BaselineStarted(target string, d time.Duration) {
	r.record(target, EventTypeBaselineStarted, map[string]int64{"baseline_ms": d.Milliseconds()})
}

func (r *Recorder) RoundStarted(target string, round int) {
	r.record(target, EventTypeRoundStarted, map[string]int{"round": round})
}

func (r *Recorder) ScenarioFinished(target string, e schedule.Execution) {
	r.record(target, EventTypeScenarioExecuted, ScenarioPayload{
		Round:       e.Round,
		Ordinal:     e.Scenario.Ordinal,
		Scenario:    e.Scenario.Name,
		DisplayName: e.Scenario.DisplayName,
		Kind:        string(e.Scenario.Kind),
		Succeeded:   e.Outcome.Succeeded(),
		Executed:    e.Outcome.Executed,
		Failed:      e.Outcome.Failed,
		Aborted:     e.Outcome.Aborted,
		Interrupted: e.Outcome.Interrupted,
		Error:       e.Outcome.ErrorString(),
		DurationMs:  e.Finished.Sub(e.Started).Milliseconds(),
	})
}

func (r *Recorder) GeneratorStopped(target string, stats traffic.Stats) {
	r.record(target, EventTypeGeneratorStopped, stats)
}

func (r *Recorder) CleanupFinished(target string, err error) {
	r.record(target, EventTypeCleanupFinished, map[string]string{"error": errString(err)})
}

func (r *Recorder) TargetFinished(s demo.TargetSummary) {
	r.record(s.Target, EventTypeTargetFinished, TargetPayload{
		Skipped:            s.Skipped,
		Interrupted:        s.Interrupted,
		Error:              errString(s.Err),
		CleanupError:       errString(s.CleanupErr),
		StatementsExecuted: s.StatementsExecuted,
		ErrorsInjected:     s.ErrorsInjected,
		ScenariosRun:       s.ScenariosRun,
		ScenariosFailed:    s.ScenariosFailed,
		Rounds:             s.Rounds,
		Generator:          s.Generator,
		DurationMs:         s.Duration().Milliseconds(),
	})
}
