package reports

import (
	"context"
	"io"
	"time"

	"github.com/rmax-ai/pganomaly/pkg/store"
)

type ReportType string

const (
	ReportTypeScenarios ReportType = "scenarios"
	ReportTypeSummary   ReportType = "summary"
	ReportTypeEvents    ReportType = "events"
)

// ReportTypes lists every supported report.
var ReportTypes = []ReportType{ReportTypeScenarios, ReportTypeSummary, ReportTypeEvents}

type ReportParams struct {
	Start  time.Time
	End    time.Time
	RunID  string
	Target string
}

func (p ReportParams) filter(types ...store.EventType) store.EventFilter {
	return store.EventFilter{
		From:       p.Start,
		To:         p.End,
		RunID:      p.RunID,
		Target:     p.Target,
		EventTypes: types,
	}
}

// ReportStore defines the interface for data access required by reports.
type ReportStore interface {
	QueryEvents(ctx context.Context, filter store.EventFilter) ([]*store.Event, error)
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}
