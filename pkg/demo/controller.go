package demo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/clock"
	"github.com/rmax-ai/pganomaly/pkg/config"
	"github.com/rmax-ai/pganomaly/pkg/metrics"
	"github.com/rmax-ai/pganomaly/pkg/schedule"
	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
	"github.com/rmax-ai/pganomaly/pkg/traffic"
)

// DefaultCleanupTimeout bounds the cleanup script after an interrupt.
const DefaultCleanupTimeout = 2 * time.Minute

const leaseMargin = 10 * time.Minute

// ErrTargetLocked means another run holds the target's lease.
var ErrTargetLocked = errors.New("target is locked by another run")

// Locker guards a target against concurrent runs from other processes.
type Locker interface {
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, name, holderID string, ttl time.Duration) error
	Release(ctx context.Context, name, holderID string) error
}

// Options configures a demo run. Targets and Intensity are required.
type Options struct {
	RunID             string
	Targets           []sqlexec.Target
	Intensity         string
	Baseline          time.Duration
	Spacing           time.Duration
	TotalDuration     time.Duration
	BackgroundEnabled bool
	// StopTimeout bounds the wait for the generator to exit. Zero means
	// config.DefaultStopTimeout.
	StopTimeout    time.Duration
	CleanupTimeout time.Duration

	// ScriptsDir holds the background workload, the anomaly scripts and
	// the cleanup script.
	ScriptsDir string
	BruteForce config.BruteForce

	// Catalog and Scenarios override what is loaded from ScriptsDir.
	Catalog   *catalog.Catalog
	Scenarios []catalog.Scenario

	Connector sqlexec.Connector
	Observer  Observer
	Logger    *zap.Logger
	Tracer    trace.Tracer
	// Locker is optional. When set, a target whose lease is held elsewhere
	// is skipped with ErrTargetLocked.
	Locker Locker
	// Clock drives the baseline wait and the scheduler.
	Clock clock.Clock
	// GeneratorOptions are appended to the controller's generator options.
	GeneratorOptions []traffic.Option
}

// OptionsFromConfig maps a validated configuration onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Targets:           cfg.Targets(),
		Intensity:         cfg.Intensity,
		Baseline:          cfg.Baseline,
		Spacing:           cfg.Spacing,
		TotalDuration:     cfg.TotalDuration,
		BackgroundEnabled: cfg.BackgroundEnabled,
		StopTimeout:       cfg.StopTimeout,
		ScriptsDir:        cfg.ScriptsDir,
		BruteForce:        cfg.BruteForce,
	}
}

// Controller runs the demo against each target in turn.
type Controller struct {
	opts      Options
	profile   config.Profile
	catalog   catalog.Catalog
	scenarios []catalog.Scenario
	logger    *zap.Logger
	observer  Observer
}

// NewController validates opts and loads the workload. Every error it
// returns is a *config.ConfigError or a script loading failure; no target
// has been touched yet.
func NewController(opts Options) (*Controller, error) {
	profile, err := config.ProfileFor(opts.Intensity)
	if err != nil {
		return nil, err
	}
	if len(opts.Targets) == 0 {
		return nil, &config.ConfigError{Field: "targets", Reason: "at least one target is required"}
	}
	for field, d := range map[string]time.Duration{
		"baseline": opts.Baseline,
		"spacing":  opts.Spacing,
		"total":    opts.TotalDuration,
	} {
		if d < 0 {
			return nil, &config.ConfigError{Field: field, Value: d.String(), Reason: "must not be negative"}
		}
	}

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Connector == nil {
		opts.Connector = sqlexec.NewConnector(opts.Logger)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/rmax-ai/pganomaly/pkg/demo")
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = config.DefaultStopTimeout
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = DefaultCleanupTimeout
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	c := &Controller{
		opts:     opts,
		profile:  profile,
		logger:   opts.Logger,
		observer: observer,
	}

	if opts.Catalog != nil {
		c.catalog = *opts.Catalog
	} else if opts.BackgroundEnabled {
		c.catalog, err = catalog.LoadCatalog(filepath.Join(opts.ScriptsDir, catalog.BackgroundScript), opts.Logger)
		if err != nil {
			return nil, err
		}
	}

	if opts.Scenarios != nil {
		c.scenarios = opts.Scenarios
	} else {
		c.scenarios, err = catalog.Discover(opts.ScriptsDir)
		if err != nil {
			return nil, err
		}
		if opts.BruteForce.Enabled {
			c.scenarios = catalog.Renumber(append(c.scenarios, catalog.BruteForceScenario()))
		}
	}
	return c, nil
}

// RunID identifies this run in history and status.
func (c *Controller) RunID() string { return c.opts.RunID }

// Scenarios returns the run order.
func (c *Controller) Scenarios() []catalog.Scenario { return c.scenarios }

// Catalog returns the background workload.
func (c *Controller) Catalog() catalog.Catalog { return c.catalog }

// Profile returns the resolved intensity profile.
func (c *Controller) Profile() config.Profile { return c.profile }

// Run processes every target sequentially. A failing target never affects
// the next one. When ctx is cancelled the current target still stops its
// generator and runs cleanup; the remaining targets are not started and
// ctx.Err() is returned with the summaries gathered so far.
func (c *Controller) Run(ctx context.Context) ([]TargetSummary, error) {
	c.logger.Info("demo_started",
		zap.String("run_id", c.opts.RunID),
		zap.Int("targets", len(c.opts.Targets)),
		zap.String("intensity", string(c.profile.Level)),
		zap.Bool("background", c.opts.BackgroundEnabled),
		zap.Int("scenarios", len(c.scenarios)),
	)

	summaries := make([]TargetSummary, 0, len(c.opts.Targets))
	for _, target := range c.opts.Targets {
		if ctx.Err() != nil {
			break
		}
		summaries = append(summaries, c.runTarget(ctx, target))
	}

	c.logger.Info("demo_finished", zap.String("run_id", c.opts.RunID), zap.Int("targets_processed", len(summaries)))
	return summaries, ctx.Err()
}

func (c *Controller) runTarget(ctx context.Context, target sqlexec.Target) (sum TargetSummary) {
	name := target.Name()
	logger := c.logger.With(zap.String("run_id", c.opts.RunID), zap.String("target", name))
	clk := c.opts.Clock

	ctx, span := c.opts.Tracer.Start(ctx, "demo.target", trace.WithAttributes(attribute.String("target", name)))
	defer span.End()

	sum = TargetSummary{Target: name, Started: clk.Now()}
	c.observer.TargetStarted(name)
	defer func() {
		sum.Finished = clk.Now()
		outcome := metrics.OutcomeCompleted
		switch {
		case sum.Skipped:
			outcome = metrics.OutcomeSkipped
		case sum.Interrupted:
			outcome = metrics.OutcomeInterrupted
		}
		metrics.TargetRuns.WithLabelValues(outcome).Inc()
		c.observer.TargetFinished(sum)
	}()

	if err := c.verify(ctx, target); err != nil {
		logger.Error("target_unreachable", zap.Error(err))
		span.RecordError(err)
		sum.Skipped = true
		sum.Err = err
		c.observer.TargetSkipped(name, err)
		return sum
	}

	if c.opts.Locker != nil {
		release, err := c.lock(ctx, name)
		if err != nil {
			logger.Warn("target_locked", zap.Error(err))
			sum.Skipped = true
			sum.Err = err
			c.observer.TargetSkipped(name, err)
			return sum
		}
		defer release()
	}

	var gen *traffic.Generator
	if c.opts.BackgroundEnabled {
		gen = c.newGenerator(target, logger)
		gen.Start(ctx)
		if c.opts.Baseline > 0 {
			logger.Info("baseline_started", zap.Duration("baseline", c.opts.Baseline))
			c.observer.BaselineStarted(name, c.opts.Baseline)
			_ = clk.Sleep(ctx, c.opts.Baseline)
		}
	}

	if ctx.Err() == nil {
		rep := c.newScheduler(target, logger).Run(ctx, c.scenarios, c.opts.Spacing, c.opts.TotalDuration)
		sum.ScenariosRun = rep.ScenariosRun
		sum.ScenariosFailed = rep.Failed
		sum.Rounds = rep.Rounds
	}

	if gen != nil {
		stats := gen.Stop(c.opts.StopTimeout)
		sum.Generator = stats
		sum.StatementsExecuted = stats.StatementsExecuted
		sum.ErrorsInjected = stats.ErrorsInjected
		c.observer.GeneratorStopped(name, stats)
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.CleanupTimeout)
	defer cancel()
	if err := c.cleanup(cctx, target, logger); err != nil {
		logger.Warn("cleanup_failed", zap.Error(err))
		sum.CleanupErr = err
	}
	c.observer.CleanupFinished(name, sum.CleanupErr)

	sum.Interrupted = ctx.Err() != nil
	logger.Info("target_completed",
		zap.Int("scenarios_run", sum.ScenariosRun),
		zap.Uint64("statements_executed", sum.StatementsExecuted),
		zap.Uint64("errors_injected", sum.ErrorsInjected),
		zap.Bool("interrupted", sum.Interrupted),
	)
	return sum
}

func (c *Controller) verify(ctx context.Context, target sqlexec.Target) error {
	conn, err := c.opts.Connector.Open(ctx, target)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (c *Controller) newGenerator(target sqlexec.Target, logger *zap.Logger) *traffic.Generator {
	opts := []traffic.Option{
		traffic.WithLogger(logger),
		traffic.WithTracer(c.opts.Tracer),
	}
	opts = append(opts, c.opts.GeneratorOptions...)
	return traffic.NewGenerator(c.opts.Connector, target, c.catalog, c.profile, opts...)
}

func (c *Controller) newScheduler(target sqlexec.Target, logger *zap.Logger) *schedule.Scheduler {
	name := target.Name()
	runner := schedule.Mux{
		catalog.KindScript: &schedule.ScriptRunner{
			Connector: c.opts.Connector,
			Target:    target,
			Logger:    logger,
		},
		catalog.KindBruteForce: &schedule.BruteForceRunner{
			Connector: c.opts.Connector,
			Target:    target,
			Attempts:  c.opts.BruteForce.Attempts,
			PerSecond: c.opts.BruteForce.PerSecond,
			Logger:    logger,
		},
	}
	return schedule.New(runner,
		schedule.WithClock(c.opts.Clock),
		schedule.WithLogger(logger),
		schedule.WithTracer(c.opts.Tracer),
		schedule.WithTargetLabel(name),
		schedule.WithHooks(schedule.Hooks{
			RoundStarted: func(round int) { c.observer.RoundStarted(name, round) },
			ScenarioStarted: func(round int, s catalog.Scenario) {
				c.observer.ScenarioStarted(name, round, s)
			},
			ScenarioFinished: func(e schedule.Execution) {
				c.renew(name, logger)
				c.observer.ScenarioFinished(name, e)
			},
		}),
	)
}

func leaseName(target string) string { return "target:" + target }

func (c *Controller) leaseTTL() time.Duration {
	return c.opts.Baseline + c.opts.TotalDuration + c.opts.CleanupTimeout + leaseMargin
}

func (c *Controller) lock(ctx context.Context, target string) (func(), error) {
	ok, err := c.opts.Locker.Acquire(ctx, leaseName(target), c.opts.RunID, c.leaseTTL())
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", target, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", target, ErrTargetLocked)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.opts.Locker.Release(ctx, leaseName(target), c.opts.RunID); err != nil {
			c.logger.Warn("lease_release_failed", zap.String("target", target), zap.Error(err))
		}
	}, nil
}

func (c *Controller) renew(target string, logger *zap.Logger) {
	if c.opts.Locker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.opts.Locker.Renew(ctx, leaseName(target), c.opts.RunID, c.leaseTTL()); err != nil {
		logger.Warn("lease_renew_failed", zap.Error(err))
	}
}

// cleanup runs the cleanup script, if present, tolerating every failure.
func (c *Controller) cleanup(ctx context.Context, target sqlexec.Target, logger *zap.Logger) error {
	path := filepath.Join(c.opts.ScriptsDir, catalog.CleanupScript)
	stmts, err := catalog.LoadStatements(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("cleanup_script_missing", zap.String("path", path))
		return nil
	}
	if err != nil {
		return &CleanupError{Target: target.Name(), Err: err}
	}

	conn, err := c.opts.Connector.Open(ctx, target)
	if err != nil {
		return &CleanupError{Target: target.Name(), Err: err}
	}
	defer conn.Close()

	res := sqlexec.Run(ctx, conn, stmts, sqlexec.Tolerant, logger)
	if res.Err != nil {
		return &CleanupError{Target: target.Name(), Failed: res.Failed, Err: res.Err}
	}
	if res.Failed > 0 {
		return &CleanupError{Target: target.Name(), Failed: res.Failed}
	}
	logger.Info("cleanup_completed", zap.Int("statements", res.Executed))
	return nil
}

// RunDemo builds a Controller from opts and runs it.
func RunDemo(ctx context.Context, opts Options) ([]TargetSummary, error) {
	c, err := NewController(opts)
	if err != nil {
		return nil, fmt.Errorf("demo setup: %w", err)
	}
	return c.Run(ctx)
}
