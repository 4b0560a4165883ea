package main

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/pganomaly/pkg/client"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded demo runs",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}
	fs := cmd.Flags()
	fs.Int("limit", 20, "number of runs to show")
	fs.String("history-db", defaultHistoryPath, "SQLite run history ("+keyHistoryDB+")")
	fs.Bool("remote", false, "ask the API at --api-url instead of opening the history")
	fs.String("api-url", defaultAPIURL, "pganomaly API ("+keyAPIURL+")")
	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	limit, _ := cmd.Flags().GetInt("limit")
	remote, _ := cmd.Flags().GetBool("remote")

	var runs []client.Run
	if remote {
		runs, err = client.NewClient(settings.APIURL).GetRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
	} else {
		st, err := openHistory(settings.HistoryPath)
		if err != nil {
			return err
		}
		defer st.Close()
		infos, err := st.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, r := range infos {
			runs = append(runs, client.Run(r))
		}
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	table := tablewriter.NewWriter(out)
	table.Header("Run", "Started", "Last Event", "Servers", "Events")
	for _, r := range runs {
		_ = table.Append(
			r.RunID,
			r.Started.Local().Format(time.DateTime),
			r.LastEvent.Local().Format(time.DateTime),
			fmt.Sprint(r.Targets),
			fmt.Sprint(r.Events),
		)
	}
	return table.Render()
}
