package traffic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/clock"
	"github.com/rmax-ai/pganomaly/pkg/config"
	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

type fakeConnector struct {
	mu          sync.Mutex
	failOpen    bool
	panicOnExec bool
	opens       int
	closes      int
	executed    []string
}

func (f *fakeConnector) Open(ctx context.Context, target sqlexec.Target) (sqlexec.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.failOpen {
		return nil, &sqlexec.ConnectError{Target: target.Name(), Err: errors.New("connection refused")}
	}
	return &fakeConn{f: f}, nil
}

func (f *fakeConnector) statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

type fakeConn struct {
	f *fakeConnector
}

func (c *fakeConn) Exec(ctx context.Context, stmt string) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.f.panicOnExec {
		panic("driver exploded")
	}
	c.f.executed = append(c.f.executed, stmt)
	if strings.HasPrefix(stmt, "ERR") {
		return &sqlexec.StatementError{Statement: stmt, Err: errors.New("division by zero")}
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.f.mu.Lock()
	c.f.closes++
	c.f.mu.Unlock()
	return nil
}

func testCatalog(selects int) catalog.Catalog {
	c := catalog.Catalog{
		Transactional: []string{"TX 1", "TX 2"},
		Analytical:    []string{"AN 1", "AN 2", "AN 3"},
		Errors:        []string{"ERR 1", "ERR 2", "ERR 3"},
	}
	for i := 1; i <= selects; i++ {
		c.Selects = append(c.Selects, fmt.Sprintf("SEL %d", i))
	}
	return c
}

func countPrefix(stmts []string, prefix string) int {
	n := 0
	for _, s := range stmts {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

var target = sqlexec.Target{Host: "db-test", Database: "adventureworks"}

func TestGenerator_StartStop(t *testing.T) {
	conn := &fakeConnector{}
	profile, _ := config.ProfileFor("medium")
	g := NewGenerator(conn, target, testCatalog(5), profile,
		WithSeed(1),
		WithCycleDelay(time.Millisecond, 2*time.Millisecond),
	)

	g.Start(context.Background())
	require.True(t, g.Running())

	require.Eventually(t, func() bool {
		return g.Stats().StatementsExecuted > 0
	}, 2*time.Second, 5*time.Millisecond)

	stats := g.Stop(time.Second)
	assert.False(t, g.Running())
	assert.GreaterOrEqual(t, stats.StatementsExecuted, uint64(1))

	select {
	case <-g.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after Stop")
	}

	conn.mu.Lock()
	assert.Equal(t, conn.opens, conn.closes, "every cycle connection must be released")
	conn.mu.Unlock()
}

func TestGenerator_StopBeforeStart(t *testing.T) {
	g := NewGenerator(&fakeConnector{}, target, testCatalog(5), config.Profile{})

	stats := g.Stop(time.Second)
	assert.Equal(t, Stats{}, stats)
	assert.Nil(t, g.Done())
	assert.False(t, g.Running())
}

func TestGenerator_StartIsIdempotent(t *testing.T) {
	g := NewGenerator(&fakeConnector{}, target, testCatalog(5), config.Profile{SelectsPerMinute: 1},
		WithCycleDelay(time.Hour, time.Hour),
	)
	g.Start(context.Background())
	first := g.Done()
	g.Start(context.Background())
	assert.Equal(t, first, g.Done(), "second Start must not launch a new loop")

	g.Stop(time.Second)
	g.Stop(time.Second)
	assert.False(t, g.Running())
}

func TestGenerator_ParentContextStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGenerator(&fakeConnector{}, target, testCatalog(5), config.Profile{SelectsPerMinute: 1},
		WithCycleDelay(time.Hour, time.Hour),
	)
	g.Start(ctx)
	cancel()

	select {
	case <-g.Done():
	case <-time.After(time.Second):
		t.Fatal("loop ignored parent cancellation")
	}
	assert.False(t, g.Running())
}

func TestCycle_ZeroRatesNeverTransactOrInjectErrors(t *testing.T) {
	conn := &fakeConnector{}
	profile := config.Profile{SelectsPerMinute: 6, UpdatesPerMinute: 0, ErrorsPer5Min: 0}
	g := NewGenerator(conn, target, testCatalog(5), profile, WithSeed(42))

	for i := 0; i < 1000; i++ {
		require.NoError(t, g.cycle(context.Background()))
	}

	stats := g.Stats()
	assert.Equal(t, uint64(1000), stats.Cycles)
	assert.Zero(t, stats.Transactional)
	assert.Zero(t, stats.ErrorsInjected)

	stmts := conn.statements()
	assert.Zero(t, countPrefix(stmts, "TX"))
	assert.Zero(t, countPrefix(stmts, "ERR"))
	assert.Positive(t, countPrefix(stmts, "SEL"))
	assert.Positive(t, countPrefix(stmts, "AN"), "analytical runs with a fixed 10% chance")
}

func TestCycle_SelectCountAndDistinctness(t *testing.T) {
	conn := &fakeConnector{}
	profile := config.Profile{SelectsPerMinute: 6}
	g := NewGenerator(conn, target, testCatalog(20), profile, WithSeed(7), WithAnalyticalProbability(0))

	for i := 0; i < 200; i++ {
		before := len(conn.statements())
		require.NoError(t, g.cycle(context.Background()))
		got := conn.statements()[before:]

		require.GreaterOrEqual(t, len(got), 5)
		require.LessOrEqual(t, len(got), 7)
		seen := map[string]bool{}
		for _, s := range got {
			require.False(t, seen[s], "select %q repeated within a cycle", s)
			seen[s] = true
		}
	}
}

func TestCycle_SelectsCappedByCatalog(t *testing.T) {
	conn := &fakeConnector{}
	g := NewGenerator(conn, target, testCatalog(2), config.Profile{SelectsPerMinute: 12}, WithSeed(3), WithAnalyticalProbability(0))

	require.NoError(t, g.cycle(context.Background()))
	assert.Len(t, conn.statements(), 2)
}

func TestCycle_MinimumOneSelect(t *testing.T) {
	conn := &fakeConnector{}
	g := NewGenerator(conn, target, testCatalog(5), config.Profile{SelectsPerMinute: 0}, WithSeed(9), WithAnalyticalProbability(0))

	for i := 0; i < 50; i++ {
		require.NoError(t, g.cycle(context.Background()))
	}
	assert.GreaterOrEqual(t, len(conn.statements()), 50)
}

func TestCycle_CertainGates(t *testing.T) {
	conn := &fakeConnector{}
	profile := config.Profile{SelectsPerMinute: 1, UpdatesPerMinute: 60, ErrorsPer5Min: 300}
	g := NewGenerator(conn, target, testCatalog(5), profile, WithSeed(5), WithAnalyticalProbability(1))

	for i := 0; i < 10; i++ {
		require.NoError(t, g.cycle(context.Background()))
	}
	stats := g.Stats()
	assert.Equal(t, uint64(10), stats.Transactional)
	assert.Equal(t, uint64(10), stats.Analytical)
	assert.Equal(t, uint64(10), stats.ErrorsInjected)
	assert.Equal(t, uint64(10), stats.StatementsFailed, "every injected error statement fails")
}

func TestCycle_EmptyCatalog(t *testing.T) {
	conn := &fakeConnector{}
	profile := config.Profile{SelectsPerMinute: 6, UpdatesPerMinute: 60, ErrorsPer5Min: 300}
	g := NewGenerator(conn, target, catalog.Catalog{}, profile, WithAnalyticalProbability(1))

	require.NoError(t, g.cycle(context.Background()))
	assert.Empty(t, conn.statements())
	assert.Zero(t, g.Stats().ErrorsInjected)
	assert.Equal(t, uint64(1), g.Stats().Cycles)
}

func TestCycle_RecoversPanic(t *testing.T) {
	conn := &fakeConnector{panicOnExec: true}
	g := NewGenerator(conn, target, testCatalog(5), config.Profile{SelectsPerMinute: 1})

	err := g.cycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	conn.mu.Lock()
	assert.Equal(t, 1, conn.closes, "connection released after panic")
	conn.mu.Unlock()
}

func TestLoop_ConnectFailureBacksOff(t *testing.T) {
	conn := &fakeConnector{failOpen: true}
	fake := clock.NewFake(time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC))
	g := NewGenerator(conn, target, testCatalog(5), config.Profile{SelectsPerMinute: 6},
		WithClock(fake),
		WithBackoff(30*time.Second),
	)

	g.Start(context.Background())
	require.Eventually(t, func() bool {
		return g.Stats().ConnectFailures >= 3
	}, 2*time.Second, time.Millisecond)
	g.Stop(time.Second)

	stats := g.Stats()
	assert.Zero(t, stats.Cycles)
	assert.Zero(t, stats.StatementsExecuted)
	for _, d := range fake.Sleeps() {
		assert.Equal(t, 30*time.Second, d)
	}
}

func TestNextDelayBounds(t *testing.T) {
	g := NewGenerator(&fakeConnector{}, target, catalog.Catalog{}, config.Profile{}, WithSeed(11))
	for i := 0; i < 500; i++ {
		d := g.nextDelay()
		require.GreaterOrEqual(t, d, 10*time.Second)
		require.Less(t, d, 15*time.Second)
	}
}
