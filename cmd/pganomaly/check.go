package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/pganomaly/pkg/config"
	"github.com/rmax-ai/pganomaly/pkg/pgadmin"
	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

const probeTimeout = 15 * time.Second

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the database connection",
		Long:  "Check connects to the first configured server (or every server with --all) and reports the session identity, server version and number of user tables.",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}
	registerConnectionFlags(cmd.Flags())
	cmd.Flags().Bool("all", false, "check every configured server")
	return cmd
}

// adminTargets checks the connection settings and returns the PostgreSQL
// targets an admin command operates on. Scripts are not needed here.
func adminTargets(cfg config.Config, all bool) ([]sqlexec.Target, error) {
	switch {
	case cfg.Driver != sqlexec.DriverPostgres:
		return nil, &config.ConfigError{Field: keyDriver, Value: string(cfg.Driver), Reason: "admin commands need the postgres driver"}
	case len(cfg.Servers) == 0:
		return nil, &config.ConfigError{Field: keyServers, Reason: "no servers specified"}
	case cfg.User == "":
		return nil, &config.ConfigError{Field: keyUser, Reason: "no user specified"}
	case cfg.Password == "":
		return nil, &config.ConfigError{Field: keyPassword, Reason: "no password specified"}
	}
	targets := cfg.Targets()
	if !all {
		targets = targets[:1]
	}
	return targets, nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	all, _ := cmd.Flags().GetBool("all")
	targets, err := adminTargets(settings.Demo, all)
	if err != nil {
		return err
	}

	dial := pgadmin.PgxDialer(logger)
	out := cmd.OutOrStdout()
	table := tablewriter.NewWriter(out)
	table.Header("Server", "Database", "User", "User Tables", "Version")

	var failed []error
	for _, t := range targets {
		res, err := probe(cmd.Context(), dial, t)
		if err != nil {
			red.Fprintf(out, "✗ %s: %v\n", t.Name(), err)
			failed = append(failed, err)
			continue
		}
		green.Fprintf(out, "✓ %s\n", t.Name())
		_ = table.Append(t.Name(), res.Database, res.User, fmt.Sprint(res.UserTables), res.Version)
	}
	if len(failed) < len(targets) {
		_ = table.Render()
	}
	return errors.Join(failed...)
}

func probe(ctx context.Context, dial pgadmin.Dialer, t sqlexec.Target) (pgadmin.ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	s, err := dial(ctx, t)
	if err != nil {
		return pgadmin.ProbeResult{}, err
	}
	defer func() { _ = s.Close(context.WithoutCancel(ctx)) }()
	return pgadmin.Probe(ctx, s)
}
