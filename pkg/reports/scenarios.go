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

// ScenarioReport lists every scenario execution in run order.
type ScenarioReport struct {
	store ReportStore
}

func NewScenarioReport(s ReportStore) *ScenarioReport {
	return &ScenarioReport{store: s}
}

func (r *ScenarioReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	headers := []string{
		"timestamp", "run_id", "target", "round", "ordinal", "scenario", "display_name",
		"kind", "succeeded", "executed", "failed", "aborted", "interrupted", "duration_ms", "error",
	}

	events, err := r.store.QueryEvents(ctx, params.filter(store.EventTypeScenarioExecuted))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	chronological(events)

	rows := make([][]string, 0, len(events))
	for _, event := range events {
		var p store.ScenarioPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload for event %s: %w", event.EventID, err)
		}
		rows = append(rows, []string{
			event.TsEvent.Format(time.RFC3339),
			event.RunID,
			event.Target,
			itoa(p.Round),
			itoa(p.Ordinal),
			p.Scenario,
			p.DisplayName,
			p.Kind,
			strconv.FormatBool(p.Succeeded),
			itoa(p.Executed),
			itoa(p.Failed),
			strconv.FormatBool(p.Aborted),
			strconv.FormatBool(p.Interrupted),
			itoa(p.DurationMs),
			p.Error,
		})
	}
	return writeCSV(headers, rows)
}
