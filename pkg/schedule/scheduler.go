package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/clock"
	"github.com/rmax-ai/pganomaly/pkg/metrics"
)

// State is the scheduler lifecycle: Idle -> Running -> Completed.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Execution records one scenario run.
type Execution struct {
	Round    int              `json:"round"`
	Scenario catalog.Scenario `json:"scenario"`
	Outcome  Outcome          `json:"outcome"`
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
}

// Report summarises a scheduler run.
type Report struct {
	Rounds       int `json:"rounds"`
	ScenariosRun int `json:"scenarios_run"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	// Cut counts scenarios the context ended mid-execution.
	Cut        int         `json:"cut"`
	Executions []Execution `json:"executions"`
	// Interrupted is set when the context ended the run before the deadline.
	Interrupted bool      `json:"interrupted"`
	Started     time.Time `json:"started"`
	Deadline    time.Time `json:"deadline"`
	Finished    time.Time `json:"finished"`
}

// Hooks are called synchronously from Run.
type Hooks struct {
	RoundStarted     func(round int)
	ScenarioStarted  func(round int, s catalog.Scenario)
	ScenarioFinished func(e Execution)
	Spacing          func(d time.Duration)
}

// Scheduler replays the scenario list in rounds until a deadline.
type Scheduler struct {
	runner Runner
	clock  clock.Clock
	logger *zap.Logger
	tracer trace.Tracer
	hooks  Hooks
	label  string
	state  atomic.Int32
}

type Option func(*Scheduler)

func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

func WithHooks(h Hooks) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// WithTargetLabel sets the target name used in logs and metrics.
func WithTargetLabel(name string) Option {
	return func(s *Scheduler) { s.label = name }
}

func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		clock:  clock.Real{},
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/rmax-ai/pganomaly/pkg/schedule"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State is safe to call from any goroutine.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run executes scenarios in ordinal order, round after round, until
// total has elapsed. No scenario starts at or after the deadline. Spacing
// is slept between scenarios, except after the last of a round or once the
// deadline has passed. Scenario failures never stop the schedule.
func (s *Scheduler) Run(ctx context.Context, scenarios []catalog.Scenario, spacing, total time.Duration) (rep Report) {
	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateCompleted))

	start := s.clock.Now()
	rep = Report{Started: start, Deadline: start.Add(total)}
	defer func() { rep.Finished = s.clock.Now() }()

	if len(scenarios) == 0 {
		s.logger.Warn("scheduler_no_scenarios", zap.String("target", s.label))
		return rep
	}

	s.logger.Info("scheduler_started",
		zap.String("target", s.label),
		zap.Int("scenarios", len(scenarios)),
		zap.Duration("spacing", spacing),
		zap.Duration("total", total),
		zap.Time("deadline", rep.Deadline),
	)

rounds:
	for round := 1; s.before(rep.Deadline) && ctx.Err() == nil; round++ {
		for i, sc := range scenarios {
			if !s.before(rep.Deadline) || ctx.Err() != nil {
				break rounds
			}
			if i == 0 {
				rep.Rounds = round
				metrics.SchedulerRound.WithLabelValues(s.label).Set(float64(round))
				if s.hooks.RoundStarted != nil {
					s.hooks.RoundStarted(round)
				}
				s.logger.Info("round_started", zap.String("target", s.label), zap.Int("round", round))
			}

			exec := s.execute(ctx, round, sc)
			rep.Executions = append(rep.Executions, exec)
			rep.ScenariosRun++
			switch {
			case exec.Outcome.Interrupted:
				rep.Cut++
			case exec.Outcome.Succeeded():
				rep.Succeeded++
			default:
				rep.Failed++
			}

			if i < len(scenarios)-1 && s.before(rep.Deadline) {
				if s.hooks.Spacing != nil {
					s.hooks.Spacing(spacing)
				}
				if err := s.clock.Sleep(ctx, spacing); err != nil {
					break rounds
				}
			}
		}
	}

	rep.Interrupted = ctx.Err() != nil
	s.logger.Info("scheduler_completed",
		zap.String("target", s.label),
		zap.Int("rounds", rep.Rounds),
		zap.Int("scenarios_run", rep.ScenariosRun),
		zap.Int("failed", rep.Failed),
		zap.Bool("interrupted", rep.Interrupted),
	)
	return rep
}

func (s *Scheduler) before(deadline time.Time) bool {
	return s.clock.Now().Before(deadline)
}

func (s *Scheduler) execute(ctx context.Context, round int, sc catalog.Scenario) Execution {
	if s.hooks.ScenarioStarted != nil {
		s.hooks.ScenarioStarted(round, sc)
	}
	ctx, span := s.tracer.Start(ctx, "schedule.scenario", trace.WithAttributes(
		attribute.String("target", s.label),
		attribute.String("scenario", sc.Name),
		attribute.Int("round", round),
		attribute.Int("ordinal", sc.Ordinal),
	))
	defer span.End()

	exec := Execution{Round: round, Scenario: sc, Started: s.clock.Now()}
	exec.Outcome = s.runner.RunScenario(ctx, sc)
	exec.Finished = s.clock.Now()
	if ctx.Err() != nil && !exec.Outcome.Succeeded() {
		exec.Outcome.Interrupted = true
	}

	outcome := metrics.OutcomeOK
	switch {
	case exec.Outcome.Interrupted:
		outcome = metrics.OutcomeInterrupted
		s.logger.Info("scenario_interrupted",
			zap.String("target", s.label),
			zap.String("scenario", sc.Name),
			zap.Int("round", round),
			zap.Int("executed", exec.Outcome.Executed),
		)
	case exec.Outcome.Failure():
		outcome = metrics.OutcomeFailed
		if exec.Outcome.Err != nil {
			span.RecordError(exec.Outcome.Err)
			span.SetStatus(codes.Error, exec.Outcome.Err.Error())
		}
		s.logger.Warn("scenario_failed",
			zap.String("target", s.label),
			zap.String("scenario", sc.Name),
			zap.Int("round", round),
			zap.Error(exec.Outcome.Err),
		)
	default:
		s.logger.Info("scenario_executed",
			zap.String("target", s.label),
			zap.String("scenario", sc.Name),
			zap.Int("round", round),
			zap.Int("executed", exec.Outcome.Executed),
			zap.Int("failed", exec.Outcome.Failed),
		)
	}
	metrics.ScenarioExecutions.WithLabelValues(s.label, sc.Name, outcome).Inc()
	metrics.ScenarioDuration.WithLabelValues(sc.Name).Observe(exec.Finished.Sub(exec.Started).Seconds())

	if s.hooks.ScenarioFinished != nil {
		s.hooks.ScenarioFinished(exec)
	}
	return exec
}
