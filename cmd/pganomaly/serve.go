package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/api"
	redisstore "github.com/rmax-ai/pganomaly/pkg/store/redis"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history and live status over HTTP",
		Long: `Serve exposes the run history database and, when a Redis address is given,
the live status published by running demos. The TUI and the MCP server read
from this API.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	fs := cmd.Flags()
	fs.String("listen", defaultListenAddr, "listen address ("+keyListenAddr+")")
	fs.String("history-db", defaultHistoryPath, "SQLite run history ("+keyHistoryDB+")")
	fs.String("redis-addr", "", "read live status from Redis ("+keyRedisAddr+")")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var history api.StoreInterface
	if settings.HistoryPath != "" {
		st, err := openHistory(settings.HistoryPath)
		if err != nil {
			return err
		}
		defer st.Close()
		history = st
	}

	var status api.StatusSource
	if settings.RedisAddr != "" {
		client, err := openRedis(ctx, settings.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		status = redisstore.NewStatusStore(client, settings.StatusTTL)
	}

	srv := api.NewServer(history, status, settings.ListenAddr, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", zap.Error(err))
		return err
	}
	return <-errCh
}
