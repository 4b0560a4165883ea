package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/config"
)

func newScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenarios and background workload a run would use",
		Args:  cobra.NoArgs,
		RunE:  runScenarios,
	}
	flags := cmd.Flags()
	flags.String("scripts-dir", config.DefaultScriptsDir, "directory of SQL scripts ("+keyScriptsDir+")")
	flags.Bool("brute-force", false, "include the brute-force login scenario ("+keyBruteForce+")")
	return cmd
}

func runScenarios(cmd *cobra.Command, _ []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	dir := settings.Demo.ScriptsDir

	scenarios, err := catalog.Discover(dir)
	if err != nil {
		return err
	}
	if settings.Demo.BruteForce.Enabled {
		scenarios = catalog.Renumber(append(scenarios, catalog.BruteForceScenario()))
	}

	out := cmd.OutOrStdout()
	cyan.Fprintf(out, "Scenarios in %s\n", dir)
	if len(scenarios) == 0 {
		yellow.Fprintln(out, "No scenario scripts found; a run would only produce background traffic.")
	} else {
		table := tablewriter.NewWriter(out)
		table.Header("#", "Key", "Name", "Kind", "Partial Failure", "Source")
		for _, s := range scenarios {
			_ = table.Append(fmt.Sprint(s.Ordinal), s.Key, s.DisplayName, string(s.Kind), fmt.Sprint(s.AllowPartialFailure), s.Source)
		}
		_ = table.Render()
	}

	bg := filepath.Join(dir, catalog.BackgroundScript)
	if _, err := os.Stat(bg); errors.Is(err, fs.ErrNotExist) {
		yellow.Fprintf(out, "\nNo background workload (%s missing)\n", bg)
		return nil
	}
	cat, err := catalog.LoadCatalog(bg, logger)
	if err != nil {
		return err
	}
	layout := "tagged"
	if !cat.Tagged {
		layout = "positional"
	}
	cyan.Fprintf(out, "\nBackground workload (%s, %d statements, %s)\n", bg, cat.Total, layout)
	table := tablewriter.NewWriter(out)
	table.Header("Category", "Statements")
	for i, c := range catalog.Categories {
		_ = table.Append(string(c), fmt.Sprint(cat.Sizes()[i]))
	}
	return table.Render()
}
