package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rmax-ai/pganomaly/pkg/api"
	"github.com/rmax-ai/pganomaly/pkg/demo"
	"github.com/rmax-ai/pganomaly/pkg/store"
	redisstore "github.com/rmax-ai/pganomaly/pkg/store/redis"
	"github.com/rmax-ai/pganomaly/pkg/telemetry"
)

var errInterrupted = errors.New("demo interrupted")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the anomaly demo against every configured server",
		Long: `Run starts background traffic on each server in turn, waits for the baseline,
then executes the anomaly scenarios in rounds until the total duration is
used up. Cleanup runs for every server that was reached, even on Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: runDemo,
	}
	fs := cmd.Flags()
	registerDemoFlags(fs)
	fs.String("history-db", defaultHistoryPath, "SQLite run history, empty to disable ("+keyHistoryDB+")")
	fs.String("redis-addr", "", "publish live status and take target leases in Redis ("+keyRedisAddr+")")
	fs.String("status-ttl", "", "how long status stays in Redis ("+keyStatusTTL+")")
	fs.String("otlp-endpoint", "", "OTLP/HTTP trace endpoint ("+keyOTLPEndpoint+")")
	fs.String("listen", defaultListenAddr, "API listen address used with --serve ("+keyListenAddr+")")
	fs.Bool("serve", false, "expose the HTTP API while the demo runs")
	fs.Bool("progress", true, "show the baseline countdown")
	return cmd
}

func runDemo(cmd *cobra.Command, _ []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	if err := settings.Demo.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		ServiceVersion: Version,
		Endpoint:       settings.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing_shutdown_failed", zap.Error(err))
		}
	}()

	runID := uuid.NewString()
	showBar, _ := cmd.Flags().GetBool("progress")
	console := NewConsole(cmd.OutOrStdout(), showBar)
	observers := demo.Observers{console}

	opts := demo.OptionsFromConfig(settings.Demo)
	opts.RunID = runID
	opts.Logger = logger
	opts.Tracer = telemetry.Tracer("github.com/rmax-ai/pganomaly/pkg/demo")

	var history api.StoreInterface
	if settings.HistoryPath != "" {
		st, err := openHistory(settings.HistoryPath)
		if err != nil {
			return err
		}
		defer st.Close()
		history = st
		opts.Locker = st
		observers = append(observers, store.NewRecorder(st, runID, logger))
	}

	var sinks []demo.StatusSink
	if settings.RedisAddr != "" {
		client, err := openRedis(ctx, settings.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		sinks = append(sinks, redisstore.NewStatusStore(client, settings.StatusTTL))
		opts.Locker = redisstore.NewLeaseStore(client)
	}
	tracker := demo.NewTracker(runID, logger, sinks...)
	observers = append(observers, tracker)
	opts.Observer = observers

	ctrl, err := demo.NewController(opts)
	if err != nil {
		return err
	}
	console.Banner(runID, settings.Demo, ctrl.Profile(), ctrl.Scenarios())

	var (
		summaries []demo.TargetSummary
		runErr    error
	)
	serve, _ := cmd.Flags().GetBool("serve")
	if !serve {
		summaries, runErr = ctrl.Run(ctx)
	} else {
		ln, err := net.Listen("tcp", settings.ListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", settings.ListenAddr, err)
		}
		srv := api.NewServer(history, api.TrackerSource{Tracker: tracker}, settings.ListenAddr, logger)
		summaries, runErr = serveWhile(ctx, srv, ln, ctrl.Run, logger)
	}

	console.PrintSummary(summaries)
	if errors.Is(runErr, context.Canceled) {
		return errInterrupted
	}
	return runErr
}

type apiServer interface {
	Serve(ln net.Listener) error
	Stop(ctx context.Context) error
}

// serveWhile serves the API on ln for as long as run executes. A server
// failure cancels the run and is reported in place of the resulting
// context.Canceled.
func serveWhile(ctx context.Context, srv apiServer, ln net.Listener,
	run func(context.Context) ([]demo.TargetSummary, error), logger *zap.Logger,
) ([]demo.TargetSummary, error) {
	var (
		summaries []demo.TargetSummary
		runErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		summaries, runErr = run(gctx)
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(stopCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api_server_failed", zap.Error(err))
		return summaries, err
	}
	return summaries, runErr
}
