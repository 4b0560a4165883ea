package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rmax-ai/pganomaly/pkg/store"
)

// SummaryReport has one row per finished target.
type SummaryReport struct {
	store ReportStore
}

func NewSummaryReport(s ReportStore) *SummaryReport {
	return &SummaryReport{store: s}
}

func (r *SummaryReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	headers := []string{
		"finished_at", "run_id", "target", "skipped", "interrupted", "rounds",
		"scenarios_run", "scenarios_failed", "statements_executed", "errors_injected",
		"duration_ms", "error", "cleanup_error",
	}

	events, err := r.store.QueryEvents(ctx, params.filter(store.EventTypeTargetFinished))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	chronological(events)

	rows := make([][]string, 0, len(events))
	for _, event := range events {
		var p store.TargetPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload for event %s: %w", event.EventID, err)
		}
		rows = append(rows, []string{
			event.TsEvent.Format(time.RFC3339),
			event.RunID,
			event.Target,
			strconv.FormatBool(p.Skipped),
			strconv.FormatBool(p.Interrupted),
			itoa(p.Rounds),
			itoa(p.ScenariosRun),
			itoa(p.ScenariosFailed),
			itoa(p.StatementsExecuted),
			itoa(p.ErrorsInjected),
			itoa(p.DurationMs),
			p.Error,
			p.CleanupError,
		})
	}
	return writeCSV(headers, rows)
}
