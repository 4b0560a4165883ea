package schedule

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

// Outcome is the result of one scenario execution.
type Outcome struct {
	Executed int  `json:"executed"`
	Failed   int  `json:"failed"`
	Aborted  bool `json:"aborted"`

	// Interrupted is set by the scheduler when the run context ended while
	// the scenario was executing. It is neither a success nor a failure.
	Interrupted bool  `json:"interrupted"`
	Err         error `json:"-"`
}

// Succeeded reports whether the scenario ran to completion.
func (o Outcome) Succeeded() bool {
	return !o.Interrupted && !o.Aborted && o.Err == nil
}

// Failure reports whether the scenario failed on its own account.
func (o Outcome) Failure() bool {
	return !o.Interrupted && !o.Succeeded()
}

// ErrorString is the failure message, empty on success.
func (o Outcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Runner executes a single scenario. Implementations must not panic on
// statement failures; they report them in the Outcome.
type Runner interface {
	RunScenario(ctx context.Context, s catalog.Scenario) Outcome
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, s catalog.Scenario) Outcome

func (f RunnerFunc) RunScenario(ctx context.Context, s catalog.Scenario) Outcome {
	return f(ctx, s)
}

// Mux dispatches on Scenario.Kind. An empty kind is KindScript.
type Mux map[catalog.Kind]Runner

func (m Mux) RunScenario(ctx context.Context, s catalog.Scenario) Outcome {
	kind := s.Kind
	if kind == "" {
		kind = catalog.KindScript
	}
	r, ok := m[kind]
	if !ok {
		return Outcome{Err: fmt.Errorf("no runner for scenario kind %q", kind)}
	}
	return r.RunScenario(ctx, s)
}

// ScriptRunner executes a scenario's SQL file on a fresh connection.
// AllowPartialFailure scenarios tolerate every failure; others skip
// "already exists"/"does not exist" failures and abort on anything else.
type ScriptRunner struct {
	Connector sqlexec.Connector
	Target    sqlexec.Target
	Logger    *zap.Logger
}

func (r *ScriptRunner) RunScenario(ctx context.Context, s catalog.Scenario) Outcome {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("target", r.Target.Name()), zap.String("scenario", s.Name))

	stmts, err := catalog.LoadStatements(s.Source)
	if err != nil {
		return Outcome{Err: err}
	}

	conn, err := r.Connector.Open(ctx, r.Target)
	if err != nil {
		return Outcome{Err: err}
	}
	defer conn.Close()

	policy := sqlexec.AbortOnUnexpected
	if s.AllowPartialFailure {
		policy = sqlexec.Tolerant
	}
	res := sqlexec.Run(ctx, conn, stmts, policy, logger)
	return Outcome{
		Executed: res.Executed,
		Failed:   res.Failed,
		Aborted:  res.Aborted,
		Err:      res.Err,
	}
}
