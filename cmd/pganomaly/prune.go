package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/archive"
	"github.com/rmax-ai/pganomaly/pkg/blob"
)

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history events older than the retention period",
		Long: `Prune deletes history events older than --retention. With --archive-dir the
events are first written to gzipped JSON Lines files under that directory
(events/YYYY/MM/DD/...) and only removed once their file is stored.`,
		Args: cobra.NoArgs,
		RunE: runPrune,
	}
	fs := cmd.Flags()
	fs.Duration("retention", 30*24*time.Hour, "keep events newer than this")
	fs.String("archive-dir", "", "archive pruned events here instead of discarding them")
	fs.Int("batch-size", archive.DefaultBatchSize, "events per archive file")
	fs.String("history-db", defaultHistoryPath, "SQLite run history ("+keyHistoryDB+")")
	return cmd
}

func runPrune(cmd *cobra.Command, _ []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	flags := cmd.Flags()
	retention, _ := flags.GetDuration("retention")
	archiveDir, _ := flags.GetString("archive-dir")
	batchSize, _ := flags.GetInt("batch-size")
	if retention <= 0 {
		return fmt.Errorf("--retention must be positive")
	}

	st, err := openHistory(settings.HistoryPath)
	if err != nil {
		return err
	}
	defer st.Close()
	out := cmd.OutOrStdout()

	if archiveDir != "" {
		a := archive.New(st, blob.NewDir(archiveDir), archive.WithBatchSize(batchSize), archive.WithLogger(logger))
		res, err := a.Archive(cmd.Context(), retention)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Archived %d events into %d files under %s\n", res.Events, len(res.Keys), archiveDir)
	}

	n, err := st.PruneEvents(cmd.Context(), retention)
	if err != nil {
		return err
	}
	logger.Info("events_pruned", zap.Int64("count", n), zap.Duration("retention", retention))
	fmt.Fprintf(out, "Pruned %d events older than %s\n", n, retention)
	return nil
}
