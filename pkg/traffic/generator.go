package traffic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/clock"
	"github.com/rmax-ai/pganomaly/pkg/config"
	"github.com/rmax-ai/pganomaly/pkg/metrics"
	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

const (
	DefaultMinDelay              = 10 * time.Second
	DefaultMaxDelay              = 15 * time.Second
	DefaultBackoff               = 30 * time.Second
	DefaultAnalyticalProbability = 0.10
)

// Stats are the generator counters. They only ever grow.
type Stats struct {
	Cycles             uint64 `json:"cycles"`
	StatementsExecuted uint64 `json:"statements_executed"`
	StatementsFailed   uint64 `json:"statements_failed"`
	ErrorsInjected     uint64 `json:"errors_injected"`
	Transactional      uint64 `json:"transactional"`
	Analytical         uint64 `json:"analytical"`
	ConnectFailures    uint64 `json:"connect_failures"`
}

// Generator produces low-rate "normal" traffic against one target on its
// own goroutine until stopped.
type Generator struct {
	connector sqlexec.Connector
	target    sqlexec.Target
	catalog   catalog.Catalog
	profile   config.Profile

	logger      *zap.Logger
	tracer      trace.Tracer
	clock       clock.Clock
	rng         *rand.Rand
	minDelay    time.Duration
	maxDelay    time.Duration
	backoff     time.Duration
	analyticalP float64

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}

	cycles          atomic.Uint64
	executed        atomic.Uint64
	failed          atomic.Uint64
	errorsInjected  atomic.Uint64
	transactional   atomic.Uint64
	analytical      atomic.Uint64
	connectFailures atomic.Uint64
}

type Option func(*Generator)

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(g *Generator) { g.tracer = t }
}

func WithClock(c clock.Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// WithSeed makes statement selection and pacing reproducible.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewSource(seed)) }
}

// WithCycleDelay sets the bounds of the pause between cycles, drawn
// uniformly from [min, max).
func WithCycleDelay(min, max time.Duration) Option {
	return func(g *Generator) {
		g.minDelay = min
		g.maxDelay = max
	}
}

// WithBackoff sets the fixed pause after a failed connection attempt.
func WithBackoff(d time.Duration) Option {
	return func(g *Generator) { g.backoff = d }
}

func WithAnalyticalProbability(p float64) Option {
	return func(g *Generator) { g.analyticalP = p }
}

func NewGenerator(connector sqlexec.Connector, target sqlexec.Target, cat catalog.Catalog, profile config.Profile, opts ...Option) *Generator {
	g := &Generator{
		connector:   connector,
		target:      target,
		catalog:     cat,
		profile:     profile,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("github.com/rmax-ai/pganomaly/pkg/traffic"),
		clock:       clock.Real{},
		minDelay:    DefaultMinDelay,
		maxDelay:    DefaultMaxDelay,
		backoff:     DefaultBackoff,
		analyticalP: DefaultAnalyticalProbability,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g
}

// Start launches the traffic loop. It returns immediately and has no effect
// while a loop is already running. Cancelling ctx also stops the loop.
func (g *Generator) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running.Load() {
		return
	}
	if g.done != nil {
		select {
		case <-g.done:
		default:
			// A previous loop has not drained after a timed-out Stop.
			return
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	g.running.Store(true)
	metrics.GeneratorRunning.WithLabelValues(g.target.Name()).Set(1)

	go g.loop(loopCtx, g.done)

	g.logger.Info("generator_started",
		zap.String("target", g.target.Name()),
		zap.String("intensity", string(g.profile.Level)),
		zap.Float64("selects_per_minute", g.profile.SelectsPerMinute),
		zap.Float64("updates_per_minute", g.profile.UpdatesPerMinute),
	)
}

// Stop requests the loop to exit and waits up to timeout for it. A
// non-positive timeout waits indefinitely. It is safe to call before Start
// and more than once, and always returns the counters.
func (g *Generator) Stop(timeout time.Duration) Stats {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel = nil
	g.running.Store(false)
	g.mu.Unlock()

	if cancel == nil {
		return g.Stats()
	}
	cancel()

	if timeout <= 0 {
		<-done
	} else {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-done:
		case <-t.C:
			g.logger.Warn("generator_stop_timeout",
				zap.String("target", g.target.Name()),
				zap.Duration("timeout", timeout),
			)
		}
	}
	metrics.GeneratorRunning.WithLabelValues(g.target.Name()).Set(0)

	stats := g.Stats()
	g.logger.Info("generator_stopped",
		zap.String("target", g.target.Name()),
		zap.Uint64("statements_executed", stats.StatementsExecuted),
		zap.Uint64("errors_injected", stats.ErrorsInjected),
		zap.Uint64("cycles", stats.Cycles),
	)
	return stats
}

// Running reports whether the loop is active.
func (g *Generator) Running() bool {
	return g.running.Load()
}

// Done is closed when the most recently started loop has exited. It is nil
// before Start.
func (g *Generator) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

// Stats returns a snapshot of the counters.
func (g *Generator) Stats() Stats {
	return Stats{
		Cycles:             g.cycles.Load(),
		StatementsExecuted: g.executed.Load(),
		StatementsFailed:   g.failed.Load(),
		ErrorsInjected:     g.errorsInjected.Load(),
		Transactional:      g.transactional.Load(),
		Analytical:         g.analytical.Load(),
		ConnectFailures:    g.connectFailures.Load(),
	}
}

func (g *Generator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer g.running.Store(false)

	for ctx.Err() == nil {
		err := g.cycle(ctx)
		var connErr *sqlexec.ConnectError
		if errors.As(err, &connErr) {
			_ = g.clock.Sleep(ctx, g.backoff)
			continue
		}
		if err != nil {
			g.logger.Warn("traffic_cycle_failed", zap.String("target", g.target.Name()), zap.Error(err))
		}
		_ = g.clock.Sleep(ctx, g.nextDelay())
	}
}

// cycle runs one round of background statements on a fresh connection.
// Statement failures are counted, never returned; a panic is converted to
// an error so the loop survives it.
func (g *Generator) cycle(ctx context.Context) (err error) {
	ctx, span := g.tracer.Start(ctx, "traffic.cycle",
		trace.WithAttributes(attribute.String("target", g.target.Name())))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("traffic cycle panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	conn, err := g.connector.Open(ctx, g.target)
	if err != nil {
		g.connectFailures.Add(1)
		metrics.TrafficConnectFailures.WithLabelValues(g.target.Name()).Inc()
		g.logger.Warn("traffic_connect_failed",
			zap.String("target", g.target.Name()),
			zap.Duration("backoff", g.backoff),
			zap.Error(err),
		)
		return err
	}
	defer conn.Close()

	for _, idx := range g.pickSelects() {
		g.exec(ctx, conn, catalog.CategorySelects, g.catalog.Selects[idx])
	}

	if g.chance(g.profile.UpdateProbability()) && len(g.catalog.Transactional) > 0 {
		g.exec(ctx, conn, catalog.CategoryTransactional, g.pick(g.catalog.Transactional))
		g.transactional.Add(1)
	}

	if g.chance(g.analyticalP) && len(g.catalog.Analytical) > 0 {
		g.exec(ctx, conn, catalog.CategoryAnalytical, g.pick(g.catalog.Analytical))
		g.analytical.Add(1)
	}

	if g.chance(g.profile.ErrorProbability()) && len(g.catalog.Errors) > 0 {
		g.exec(ctx, conn, catalog.CategoryErrors, g.pick(g.catalog.Errors))
		g.errorsInjected.Add(1)
	}

	g.cycles.Add(1)
	metrics.TrafficCycles.WithLabelValues(g.target.Name()).Inc()
	span.SetAttributes(attribute.Int64("statements_executed", int64(g.executed.Load())))
	return nil
}

func (g *Generator) exec(ctx context.Context, conn sqlexec.Conn, cat catalog.Category, stmt string) {
	res := sqlexec.Run(ctx, conn, []string{stmt}, sqlexec.Tolerant, g.logger)
	outcome := metrics.OutcomeOK
	if res.Failed > 0 {
		outcome = metrics.OutcomeFailed
	}
	if res.Executed+res.Failed > 0 {
		metrics.TrafficStatements.WithLabelValues(g.target.Name(), string(cat), outcome).Inc()
	}
	g.executed.Add(uint64(res.Executed))
	g.failed.Add(uint64(res.Failed))
}

// selectCount is round(selectsPerMinute + U(-1, 1)), at least 1.
func (g *Generator) selectCount() int {
	n := int(math.Round(g.profile.SelectsPerMinute + g.rng.Float64()*2 - 1))
	return max(1, n)
}

// pickSelects samples distinct select indexes without replacement.
func (g *Generator) pickSelects() []int {
	k := min(g.selectCount(), len(g.catalog.Selects))
	if k == 0 {
		return nil
	}
	return g.rng.Perm(len(g.catalog.Selects))[:k]
}

func (g *Generator) pick(stmts []string) string {
	return stmts[g.rng.Intn(len(stmts))]
}

// chance draws once from the generator's RNG; p <= 0 never fires.
func (g *Generator) chance(p float64) bool {
	return g.rng.Float64() < p
}

func (g *Generator) nextDelay() time.Duration {
	if g.maxDelay <= g.minDelay {
		return g.minDelay
	}
	return g.minDelay + time.Duration(g.rng.Int63n(int64(g.maxDelay-g.minDelay)))
}
