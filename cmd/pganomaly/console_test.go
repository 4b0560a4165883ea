package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/config"
	"github.com/rmax-ai/pganomaly/pkg/demo"
	"github.com/rmax-ai/pganomaly/pkg/schedule"
	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
	"github.com/rmax-ai/pganomaly/pkg/traffic"
)

func init() {
	color.NoColor = true
}

func TestConsole_ScenarioLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)
	scenarios := []catalog.Scenario{
		{Ordinal: 1, Name: "test_01", DisplayName: "Mass Data Access"},
		{Ordinal: 2, Name: "test_03", DisplayName: "Error Spike", AllowPartialFailure: true},
		{Ordinal: 3, Name: "test_04", DisplayName: "DDL Burst"},
	}
	cfg := config.Default()
	cfg.Servers = []string{"db1"}
	profile, _ := config.ProfileFor("medium")
	c.Banner("run-1", cfg, profile, scenarios)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.ScenarioStarted("db1", 1, scenarios[0])
	c.ScenarioFinished("db1", schedule.Execution{Round: 1, Scenario: scenarios[0], Outcome: schedule.Outcome{Executed: 4}, Started: start, Finished: start.Add(time.Second)})
	c.ScenarioFinished("db1", schedule.Execution{Round: 1, Scenario: scenarios[1], Outcome: schedule.Outcome{Executed: 5, Failed: 5}, Started: start, Finished: start})
	c.ScenarioFinished("db1", schedule.Execution{Round: 1, Scenario: scenarios[2], Outcome: schedule.Outcome{Executed: 1, Aborted: true}, Started: start, Finished: start})
	c.ScenarioFinished("db1", schedule.Execution{Round: 2, Scenario: scenarios[0], Outcome: schedule.Outcome{Executed: 2, Interrupted: true, Err: context.Canceled}, Started: start, Finished: start})
	c.CleanupFinished("db1", errors.New("2 statements failed"))

	out := buf.String()
	for _, want := range []string{
		"run-1",
		"db1",
		"medium",
		"[1/3] Mass Data Access",
		"✓ test_01: 4 statements",
		"5 failed as expected",
		"✗ test_04 aborted after 1 statements",
		"■ test_01 interrupted after 2 statements",
		"cleanup: 2 statements failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_BaselineBarStopsOnRound(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)
	c.BaselineStarted("db1", 30*time.Second)
	c.RoundStarted("db1", 1)
	c.GeneratorStopped("db1", traffic.Stats{})
	c.TargetFinished(demo.TargetSummary{Target: "db1"})

	if c.bar != nil {
		t.Fatal("progress bar still running after the first round")
	}
	if !strings.Contains(buf.String(), "Round 1") {
		t.Errorf("missing round header:\n%s", buf.String())
	}
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)
	start := time.Now()
	c.PrintSummary([]demo.TargetSummary{
		{Target: "db1", Rounds: 2, ScenariosRun: 6, StatementsExecuted: 120, Started: start, Finished: start.Add(time.Minute)},
		{Target: "db2", Skipped: true, Err: &sqlexec.ConnectError{Target: "db2", Err: errors.New("refused")}},
		{Target: "db3", Interrupted: true, CleanupErr: errors.New("boom")},
	})

	out := buf.String()
	for _, want := range []string{"db1", "completed", "db2", "skipped", "db3", "interrupted", "failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestAdminTargets(t *testing.T) {
	cfg := config.Default()
	cfg.Servers = []string{"db1", "db2"}
	cfg.User = "demo"
	cfg.Password = "secret"

	targets, err := adminTargets(cfg, false)
	if err != nil {
		t.Fatalf("adminTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].Host != "db1" {
		t.Errorf("first-only targets = %+v", targets)
	}
	if targets, _ = adminTargets(cfg, true); len(targets) != 2 {
		t.Errorf("all targets = %d, want 2", len(targets))
	}

	cfg.Password = ""
	var ce *config.ConfigError
	if _, err := adminTargets(cfg, true); !errors.As(err, &ce) || ce.Field != keyPassword {
		t.Errorf("missing password error = %v", err)
	}

	cfg.Driver = sqlexec.DriverSQLite
	if _, err := adminTargets(cfg, true); !errors.As(err, &ce) || ce.Field != keyDriver {
		t.Errorf("sqlite driver error = %v", err)
	}
}
