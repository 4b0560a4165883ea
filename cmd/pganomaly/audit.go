package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/pgadmin"
)

func newSetupAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup-audit",
		Short: "Enable pgaudit logging on the demo database",
		Long: `Setup-audit checks that the pgaudit extension is installed, shows the current
audit settings, sets pgaudit.log, pgaudit.log_catalog and pgaudit.log_parameter
on the demo database, then reconnects and lists the effective values.

pgaudit must be in shared_preload_libraries and created with
CREATE EXTENSION pgaudit before this command can enable it.`,
		Args: cobra.NoArgs,
		RunE: runSetupAudit,
	}
	registerConnectionFlags(cmd.Flags())
	cmd.Flags().Bool("all", true, "configure every configured server")
	return cmd
}

func runSetupAudit(cmd *cobra.Command, _ []string) error {
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
	var failed []error
	for _, t := range targets {
		cyan.Fprintf(out, "pgaudit on %s (%s)\n", t.Name(), t.Database)
		rep, err := pgadmin.SetupAudit(cmd.Context(), dial, t, logger)
		switch {
		case errors.Is(err, pgadmin.ErrAuditNotInstalled):
			yellow.Fprintln(out, "  pgaudit is not installed. Add it to shared_preload_libraries, restart, then run CREATE EXTENSION pgaudit;")
			continue
		case err != nil:
			red.Fprintf(out, "  ✗ %v\n", err)
			logger.Error("setup_audit_failed", zap.String("target", t.Name()), zap.Error(err))
			failed = append(failed, err)
			continue
		}
		printSettings(out, "Before", rep.Before)
		printSettings(out, "After", rep.After)
		green.Fprintln(out, "  ✓ audit logging configured")
	}
	return errors.Join(failed...)
}

func printSettings(out io.Writer, title string, settings []pgadmin.Setting) {
	fmt.Fprintf(out, "  %s:\n", title)
	table := tablewriter.NewWriter(out)
	table.Header("Setting", "Value", "Source")
	for _, s := range settings {
		_ = table.Append(s.Name, s.Value, s.Source)
	}
	_ = table.Render()
}
