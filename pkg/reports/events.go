package reports

import (
	"context"
	"fmt"
	"io"
	"time"
)

// EventReport dumps raw history events.
type EventReport struct {
	store ReportStore
}

func NewEventReport(s ReportStore) *EventReport {
	return &EventReport{store: s}
}

func (r *EventReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	events, err := r.store.QueryEvents(ctx, params.filter())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	chronological(events)

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			string(e.EventID),
			string(e.EventType),
			e.TsEvent.Format(time.RFC3339Nano),
			e.RunID,
			e.Target,
			string(e.Payload),
		})
	}
	return writeCSV([]string{"event_id", "event_type", "timestamp", "run_id", "target", "payload"}, rows)
}
