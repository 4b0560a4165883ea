package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/pganomaly/pkg/client"
	"github.com/rmax-ai/pganomaly/pkg/demo"
	redisstore "github.com/rmax-ai/pganomaly/pkg/store/redis"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show live per-server progress of running demos",
		Long:  "Status reads the progress published to Redis by --redis-addr, or asks the API at --api-url otherwise.",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().String("redis-addr", "", "read status from Redis ("+keyRedisAddr+")")
	cmd.Flags().String("api-url", defaultAPIURL, "pganomaly API ("+keyAPIURL+")")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if settings.RedisAddr != "" {
		rc, err := openRedis(ctx, settings.RedisAddr)
		if err != nil {
			return err
		}
		defer rc.Close()
		statuses, err := redisstore.NewStatusStore(rc, settings.StatusTTL).List(ctx)
		if err != nil {
			return err
		}
		rows := make([]client.TargetStatus, 0, len(statuses))
		for _, s := range statuses {
			rows = append(rows, fromDemoStatus(s))
		}
		return printStatus(out, rows)
	}

	statuses, ok, err := client.NewClient(settings.APIURL).GetStatus(ctx)
	if err != nil {
		return err
	}
	if !ok {
		yellow.Fprintf(out, "%s has no live status source\n", settings.APIURL)
		return nil
	}
	return printStatus(out, statuses)
}

func fromDemoStatus(s demo.Status) client.TargetStatus {
	ts := client.TargetStatus{
		RunID:           s.RunID,
		Target:          s.Target,
		Phase:           string(s.Phase),
		Round:           s.Round,
		Scenario:        s.Scenario,
		ScenariosRun:    s.ScenariosRun,
		ScenariosFailed: s.ScenariosFailed,
		Error:           s.Error,
		UpdatedAt:       s.UpdatedAt,
	}
	if g := s.Generator; g != nil {
		ts.Generator = &client.GeneratorStats{
			Cycles:             g.Cycles,
			StatementsExecuted: g.StatementsExecuted,
			StatementsFailed:   g.StatementsFailed,
			ErrorsInjected:     g.ErrorsInjected,
			Transactional:      g.Transactional,
			Analytical:         g.Analytical,
			ConnectFailures:    g.ConnectFailures,
		}
	}
	return ts
}

func printStatus(out io.Writer, statuses []client.TargetStatus) error {
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No demo status published.")
		return nil
	}
	table := tablewriter.NewWriter(out)
	table.Header("Server", "Run", "Phase", "Round", "Scenario", "Run/Failed", "Statements", "Updated", "Error")
	for _, s := range statuses {
		stmts := "-"
		if s.Generator != nil {
			stmts = fmt.Sprint(s.Generator.StatementsExecuted)
		}
		_ = table.Append(
			s.Target,
			shortID(s.RunID),
			s.Phase,
			fmt.Sprint(s.Round),
			s.Scenario,
			fmt.Sprintf("%d/%d", s.ScenariosRun, s.ScenariosFailed),
			stmts,
			s.UpdatedAt.Local().Format(time.TimeOnly),
			s.Error,
		)
	}
	return table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
