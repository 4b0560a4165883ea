package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/config"
	"github.com/rmax-ai/pganomaly/pkg/demo"
	"github.com/rmax-ai/pganomaly/pkg/schedule"
	"github.com/rmax-ai/pganomaly/pkg/traffic"
)

var (
	bold   = color.New(color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

const rule = "================================================================================"

// Console prints demo progress for a human watching the terminal.
type Console struct {
	out       io.Writer
	scenarios int
	showBar   bool

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	stopTick chan struct{}
	tickDone chan struct{}
}

// NewConsole writes to out. showBar enables the baseline countdown.
func NewConsole(out io.Writer, showBar bool) *Console {
	return &Console{out: out, showBar: showBar}
}

// Banner prints the run configuration.
func (c *Console) Banner(runID string, cfg config.Config, profile config.Profile, scenarios []catalog.Scenario) {
	c.scenarios = len(scenarios)
	cyan.Fprintln(c.out, rule)
	cyan.Fprintln(c.out, "  PostgreSQL Anomaly Demo")
	cyan.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "Run:        %s\n", runID)
	fmt.Fprintf(c.out, "Servers:    %s\n", strings.Join(cfg.Servers, ", "))
	fmt.Fprintf(c.out, "Database:   %s\n", cfg.Database)
	if cfg.BackgroundEnabled {
		fmt.Fprintf(c.out, "Background: %s (%.0f selects/min, %.1f updates/min, %.0f errors/5min)\n",
			profile.Level, profile.SelectsPerMinute, profile.UpdatesPerMinute, profile.ErrorsPer5Min)
		fmt.Fprintf(c.out, "Baseline:   %s\n", cfg.Baseline)
	} else {
		fmt.Fprintln(c.out, "Background: disabled")
	}
	fmt.Fprintf(c.out, "Spacing:    %s\n", cfg.Spacing)
	fmt.Fprintf(c.out, "Total:      %s\n", cfg.TotalDuration)
	fmt.Fprintf(c.out, "Scenarios:  %d\n", len(scenarios))
	for _, s := range scenarios {
		fmt.Fprintf(c.out, "  %2d. %s\n", s.Ordinal, s.DisplayName)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) TargetStarted(target string) {
	yellow.Fprintln(c.out, strings.Repeat("-", len(rule)))
	yellow.Fprintf(c.out, "  Server: %s\n", target)
	yellow.Fprintln(c.out, strings.Repeat("-", len(rule)))
}

func (c *Console) TargetSkipped(target string, err error) {
	red.Fprintf(c.out, "✗ %s skipped: %v\n", target, err)
}

func (c *Console) BaselineStarted(target string, d time.Duration) {
	fmt.Fprintf(c.out, "Baseline: %s of normal traffic before the first anomaly\n", d)
	if !c.showBar || d < time.Second {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bar = progressbar.NewOptions64(int64(d/time.Second),
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("baseline"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(c.out) }),
	)
	c.stopTick = make(chan struct{})
	c.tickDone = make(chan struct{})
	go c.tick(c.bar, c.stopTick, c.tickDone)
}

func (c *Console) tick(bar *progressbar.ProgressBar, stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			_ = bar.Add(1)
		}
	}
}

// finishBar stops the baseline countdown if one is running.
func (c *Console) finishBar() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar == nil {
		return
	}
	close(c.stopTick)
	<-c.tickDone
	_ = c.bar.Finish()
	c.bar = nil
}

func (c *Console) RoundStarted(target string, round int) {
	c.finishBar()
	bold.Fprintf(c.out, "\nRound %d\n", round)
}

func (c *Console) ScenarioStarted(target string, round int, s catalog.Scenario) {
	fmt.Fprintf(c.out, "  ▶ [%d/%d] %s\n", s.Ordinal, c.scenarios, s.DisplayName)
}

func (c *Console) ScenarioFinished(target string, e schedule.Execution) {
	took := e.Finished.Sub(e.Started).Round(time.Millisecond)
	o := e.Outcome
	switch {
	case o.Interrupted:
		yellow.Fprintf(c.out, "    ■ %s interrupted after %d statements (%s)\n", e.Scenario.Name, o.Executed, took)
	case o.Err != nil:
		red.Fprintf(c.out, "    ✗ %s: %v\n", e.Scenario.Name, o.Err)
	case o.Aborted:
		red.Fprintf(c.out, "    ✗ %s aborted after %d statements (%s)\n", e.Scenario.Name, o.Executed, took)
	case o.Failed > 0:
		yellow.Fprintf(c.out, "    ✓ %s: %d statements, %d failed as expected (%s)\n", e.Scenario.Name, o.Executed, o.Failed, took)
	default:
		green.Fprintf(c.out, "    ✓ %s: %d statements (%s)\n", e.Scenario.Name, o.Executed, took)
	}
}

func (c *Console) GeneratorStopped(target string, stats traffic.Stats) {
	c.finishBar()
	fmt.Fprintf(c.out, "Background traffic stopped: %d statements, %d errors injected, %d cycles\n",
		stats.StatementsExecuted, stats.ErrorsInjected, stats.Cycles)
}

func (c *Console) CleanupFinished(target string, err error) {
	if err != nil {
		yellow.Fprintf(c.out, "⚠ cleanup: %v\n", err)
		return
	}
	green.Fprintln(c.out, "✓ cleanup complete")
}

func (c *Console) TargetFinished(sum demo.TargetSummary) {
	c.finishBar()
	fmt.Fprintln(c.out)
}

func summaryStatus(s demo.TargetSummary) string {
	switch {
	case s.Skipped:
		return "skipped"
	case s.Interrupted:
		return "interrupted"
	case s.ScenariosFailed > 0:
		return "completed with failures"
	}
	return "completed"
}

// PrintSummary renders the per-target results table.
func (c *Console) PrintSummary(summaries []demo.TargetSummary) {
	cyan.Fprintln(c.out, rule)
	cyan.Fprintln(c.out, "  Summary")
	cyan.Fprintln(c.out, rule)
	if len(summaries) == 0 {
		fmt.Fprintln(c.out, "No servers were processed.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Server", "Status", "Rounds", "Scenarios", "Failed", "Statements", "Errors Injected", "Cleanup", "Duration")
	for _, s := range summaries {
		cleanup := "ok"
		if s.CleanupErr != nil {
			cleanup = "failed"
		}
		if s.Skipped {
			cleanup = "-"
		}
		_ = table.Append(
			s.Target,
			summaryStatus(s),
			fmt.Sprint(s.Rounds),
			fmt.Sprint(s.ScenariosRun),
			fmt.Sprint(s.ScenariosFailed),
			fmt.Sprint(s.StatementsExecuted),
			fmt.Sprint(s.ErrorsInjected),
			cleanup,
			s.Duration().Round(time.Second).String(),
		)
	}
	_ = table.Render()
}
