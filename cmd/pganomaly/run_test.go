package main

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/demo"
)

type fakeAPIServer struct {
	serveErr error

	once    sync.Once
	stopped chan struct{}
}

func newFakeAPIServer(serveErr error) *fakeAPIServer {
	return &fakeAPIServer{serveErr: serveErr, stopped: make(chan struct{})}
}

func (f *fakeAPIServer) Serve(net.Listener) error {
	if f.serveErr != nil {
		return f.serveErr
	}
	<-f.stopped
	return nil
}

func (f *fakeAPIServer) Stop(context.Context) error {
	f.once.Do(func() { close(f.stopped) })
	return nil
}

func TestServeWhile_Completes(t *testing.T) {
	srv := newFakeAPIServer(nil)
	run := func(ctx context.Context) ([]demo.TargetSummary, error) {
		return []demo.TargetSummary{{Target: "db1"}}, nil
	}

	summaries, err := serveWhile(context.Background(), srv, nil, run, zap.NewNop())
	if err != nil {
		t.Fatalf("serveWhile: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Target != "db1" {
		t.Errorf("unexpected summaries: %+v", summaries)
	}
}

func TestServeWhile_ServerFailureIsReported(t *testing.T) {
	listenErr := errors.New("accept tcp: use of closed network connection")
	srv := newFakeAPIServer(listenErr)
	run := func(ctx context.Context) ([]demo.TargetSummary, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := serveWhile(context.Background(), srv, nil, run, zap.NewNop())
	if !errors.Is(err, listenErr) {
		t.Fatalf("expected the server error, got %v", err)
	}
}

func TestServeWhile_InterruptIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := newFakeAPIServer(nil)
	run := func(ctx context.Context) ([]demo.TargetSummary, error) {
		cancel()
		<-ctx.Done()
		return []demo.TargetSummary{{Target: "db1", Interrupted: true}}, ctx.Err()
	}

	summaries, err := serveWhile(ctx, srv, nil, run, zap.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("summaries lost on interrupt: %+v", summaries)
	}
}
