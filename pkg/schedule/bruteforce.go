package schedule

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

// BruteForceRunner simulates a password-guessing attack: Attempts logins
// with random wrong passwords, paced at PerSecond. Rejected logins are the
// expected result and count as Failed; Executed counts attempts.
type BruteForceRunner struct {
	Connector sqlexec.Connector
	Target    sqlexec.Target
	Attempts  int
	PerSecond float64
	Logger    *zap.Logger
}

func (r *BruteForceRunner) RunScenario(ctx context.Context, s catalog.Scenario) Outcome {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if r.PerSecond > 0 {
		limit = rate.Limit(r.PerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	var out Outcome
	for i := 0; i < r.Attempts; i++ {
		if err := limiter.Wait(ctx); err != nil {
			out.Err = err
			break
		}
		t := r.Target
		t.Password = "wrong-" + uuid.NewString()
		out.Executed++

		conn, err := r.Connector.Open(ctx, t)
		if err != nil {
			out.Failed++
			continue
		}
		// Accepted despite the wrong password (trust auth).
		conn.Close()
	}

	logger.Info("bruteforce_finished",
		zap.String("target", r.Target.Name()),
		zap.Int("attempts", out.Executed),
		zap.Int("rejected", out.Failed),
	)
	return out
}
