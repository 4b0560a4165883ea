package sqlexec

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Conn is a single database session. Every Exec runs in its own
// transaction: committed on success, rolled back on failure.
type Conn interface {
	Exec(ctx context.Context, stmt string) error
	Close() error
}

// Connector opens sessions against a target. Failures are *ConnectError.
type Connector interface {
	Open(ctx context.Context, target Target) (Conn, error)
}

// Policy controls how Run reacts to a failing statement.
type Policy int

const (
	// Tolerant counts every failure and keeps going.
	Tolerant Policy = iota
	// AbortOnUnexpected keeps going on benign failures and stops at the
	// first other failure.
	AbortOnUnexpected
)

func (p Policy) String() string {
	switch p {
	case Tolerant:
		return "tolerant"
	case AbortOnUnexpected:
		return "abort_on_unexpected"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Result summarises one Run.
type Result struct {
	Executed int
	Failed   int
	Benign   int
	// Aborted is set when an unexpected failure stopped the run early;
	// Err then holds that failure.
	Aborted bool
	Err     error
}

// Run executes stmts in order on conn under the given policy. It stops
// early when ctx is cancelled.
func Run(ctx context.Context, conn Conn, stmts []string, policy Policy, logger *zap.Logger) Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res Result
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		err := conn.Exec(ctx, stmt)
		if err == nil {
			res.Executed++
			continue
		}
		res.Failed++

		if policy == Tolerant {
			logger.Debug("statement_failed_tolerated", zap.Error(err))
			continue
		}
		if IsBenign(err) {
			res.Benign++
			logger.Warn("statement_failed_benign", zap.Error(err))
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Err = err
			return res
		}
		logger.Error("statement_failed_unexpected", zap.Error(err))
		res.Aborted = true
		res.Err = err
		return res
	}
	return res
}

// MultiConnector routes Open to a connector by target driver. Targets
// without a driver use DriverPostgres.
type MultiConnector map[Driver]Connector

func (m MultiConnector) Open(ctx context.Context, target Target) (Conn, error) {
	driver := target.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	c, ok := m[driver]
	if !ok {
		return nil, &ConnectError{Target: target.Name(), Err: fmt.Errorf("unsupported driver %q", driver)}
	}
	return c.Open(ctx, target)
}

// NewConnector returns the default connector set.
func NewConnector(logger *zap.Logger) MultiConnector {
	return MultiConnector{
		DriverPostgres: NewPostgresConnector(logger),
		DriverSQLite:   NewSQLiteConnector(logger),
	}
}
