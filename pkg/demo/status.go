package demo

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/schedule"
	"github.com/rmax-ai/pganomaly/pkg/traffic"
)

// Phase is where a target is in its demo lifecycle.
type Phase string

const (
	PhaseConnecting Phase = "connecting"
	PhaseSkipped    Phase = "skipped"
	PhaseBaseline   Phase = "baseline"
	PhaseScenarios  Phase = "scenarios"
	PhaseCleanup    Phase = "cleanup"
	PhaseFinished   Phase = "finished"
)

// Status is the live view of one target.
type Status struct {
	RunID           string         `json:"run_id"`
	Target          string         `json:"target"`
	Phase           Phase          `json:"phase"`
	Round           int            `json:"round"`
	Scenario        string         `json:"scenario,omitempty"`
	ScenariosRun    int            `json:"scenarios_run"`
	ScenariosFailed int            `json:"scenarios_failed"`
	Generator       *traffic.Stats `json:"generator,omitempty"`
	Error           string         `json:"error,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// StatusSink publishes status snapshots somewhere other processes can read
// them.
type StatusSink interface {
	Publish(ctx context.Context, s Status) error
}

// Tracker is an Observer that maintains a Status per target and forwards
// every change to its sinks. Sink failures are logged and otherwise ignored.
type Tracker struct {
	runID  string
	sinks  []StatusSink
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	status map[string]*Status
}

func NewTracker(runID string, logger *zap.Logger, sinks ...StatusSink) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		runID:  runID,
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
		status: make(map[string]*Status),
	}
}

// List returns a snapshot of every tracked target, sorted by name.
func (t *Tracker) List() []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Status, 0, len(t.status))
	for _, s := range t.status {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Get returns the status of one target.
func (t *Tracker) Get(target string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.status[target]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

func (t *Tracker) update(target string, fn func(s *Status)) {
	t.mu.Lock()
	s, ok := t.status[target]
	if !ok {
		s = &Status{RunID: t.runID, Target: target}
		t.status[target] = s
	}
	fn(s)
	s.UpdatedAt = t.now().UTC()
	snap := *s
	t.mu.Unlock()

	for _, sink := range t.sinks {
		if err := sink.Publish(context.Background(), snap); err != nil {
			t.logger.Warn("status_publish_failed", zap.String("target", target), zap.Error(err))
		}
	}
}

func (t *Tracker) TargetStarted(target string) {
	t.update(target, func(s *Status) { *s = Status{RunID: t.runID, Target: target, Phase: PhaseConnecting} })
}

func (t *Tracker) TargetSkipped(target string, err error) {
	t.update(target, func(s *Status) {
		s.Phase = PhaseSkipped
		if err != nil {
			s.Error = err.Error()
		}
	})
}

func (t *Tracker) BaselineStarted(target string, _ time.Duration) {
	t.update(target, func(s *Status) { s.Phase = PhaseBaseline })
}

func (t *Tracker) RoundStarted(target string, round int) {
	t.update(target, func(s *Status) {
		s.Phase = PhaseScenarios
		s.Round = round
	})
}

func (t *Tracker) ScenarioStarted(target string, round int, sc catalog.Scenario) {
	t.update(target, func(s *Status) {
		s.Phase = PhaseScenarios
		s.Round = round
		s.Scenario = sc.DisplayName
	})
}

func (t *Tracker) ScenarioFinished(target string, e schedule.Execution) {
	t.update(target, func(s *Status) {
		s.ScenariosRun++
		if e.Outcome.Failure() {
			s.ScenariosFailed++
		}
	})
}

func (t *Tracker) GeneratorStopped(target string, stats traffic.Stats) {
	t.update(target, func(s *Status) { s.Generator = &stats })
}

func (t *Tracker) CleanupFinished(target string, err error) {
	t.update(target, func(s *Status) {
		s.Phase = PhaseCleanup
		s.Scenario = ""
		if err != nil {
			s.Error = err.Error()
		}
	})
}

func (t *Tracker) TargetFinished(sum TargetSummary) {
	if sum.Skipped {
		return
	}
	t.update(sum.Target, func(s *Status) {
		s.Phase = PhaseFinished
		s.ScenariosRun = sum.ScenariosRun
		s.ScenariosFailed = sum.ScenariosFailed
		s.Round = sum.Rounds
	})
}
