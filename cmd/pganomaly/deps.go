package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/store"
)

// setup resolves settings and the logger for a command and applies
// --no-color.
func setup(cmd *cobra.Command) (Settings, *zap.Logger, error) {
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		color.NoColor = true
	}
	s, err := loadSettings(cmd.Flags())
	if err != nil {
		return Settings{}, nil, err
	}
	logger, err := newLogger(s.LogFormat, s.LogLevel)
	if err != nil {
		return Settings{}, nil, err
	}
	return s, logger, nil
}

func openHistory(path string) (*store.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("no history database configured (--history-db or %s)", keyHistoryDB)
	}
	st, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	return st, nil
}

// openRedis connects and pings. The caller closes the client.
func openRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func syncLogger(logger *zap.Logger) {
	_ = logger.Sync()
}
