package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/pganomaly/pkg/client"
	"github.com/rmax-ai/pganomaly/pkg/reports"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a CSV report from the run history",
		Long: `Report writes one of the CSV reports:

  scenarios  one row per executed scenario
  summary    one row per server and run
  events     every recorded event with its raw payload`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}
	fs := cmd.Flags()
	fs.String("type", string(reports.ReportTypeSummary), "report type: "+reportTypeNames())
	fs.String("run-id", "", "only this run")
	fs.String("target", "", "only this server")
	fs.String("from", "", "events at or after this RFC3339 time")
	fs.String("to", "", "events before this RFC3339 time")
	fs.StringP("out", "o", "", "write to a file instead of stdout")
	fs.String("history-db", defaultHistoryPath, "SQLite run history ("+keyHistoryDB+")")
	fs.Bool("remote", false, "ask the API at --api-url instead of opening the history")
	fs.String("api-url", defaultAPIURL, "pganomaly API ("+keyAPIURL+")")
	return cmd
}

func reportTypeNames() string {
	names := make([]string, len(reports.ReportTypes))
	for i, t := range reports.ReportTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func parseTimeFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want RFC3339", name, raw)
	}
	return t, nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)

	flags := cmd.Flags()
	typ, _ := flags.GetString("type")
	runID, _ := flags.GetString("run-id")
	target, _ := flags.GetString("target")
	outPath, _ := flags.GetString("out")
	remote, _ := flags.GetBool("remote")
	from, err := parseTimeFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := parseTimeFlag(cmd, "to")
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return fmt.Errorf("--to is before --from")
	}

	var body io.Reader
	if remote {
		data, err := client.NewClient(settings.APIURL).GetReport(cmd.Context(), client.ReportOptions{
			Type: typ, RunID: runID, Target: target, From: from, To: to,
		})
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		st, err := openHistory(settings.HistoryPath)
		if err != nil {
			return err
		}
		defer st.Close()
		gen, err := reports.NewReportGenerator(reports.ReportType(typ), st)
		if err != nil {
			return err
		}
		body, err = gen.Generate(cmd.Context(), reports.ReportParams{
			Start: from, End: to, RunID: runID, Target: target,
		})
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}
	if _, err := io.Copy(out, body); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
