package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "v0.1.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pganomaly",
		Short: "Drive anomaly detection demos against PostgreSQL",
		Long: `pganomaly runs a baseline of normal background traffic against PostgreSQL
servers, then fires anomaly scenario scripts in rounds so a detection product
has something to find.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("env-file", defaultEnvFile, "dotenv file with configuration")
	pf.String("log-format", "json", "log format: json or console ("+keyLogFormat+")")
	pf.String("log-level", "info", "log level ("+keyLogLevel+")")
	pf.Bool("no-color", false, "disable colored console output")

	root.AddCommand(
		newRunCmd(),
		newCheckCmd(),
		newSetupAuditCmd(),
		newScenariosCmd(),
		newServeCmd(),
		newStatusCmd(),
		newRunsCmd(),
		newReportCmd(),
		newPruneCmd(),
		newMCPCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
