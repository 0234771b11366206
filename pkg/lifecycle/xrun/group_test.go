package xrun_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xtracing/pkg/lifecycle/xrun"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// signal.Notify 启动的常驻接收 goroutine
		goleak.IgnoreAnyFunction("os/signal.loop"),
	)
}

func TestGroupFirstErrorCancelsOthers(t *testing.T) {
	boom := errors.New("boom")
	g, _ := xrun.NewGroup(context.Background(), xrun.WithName("test"))

	g.GoWithName("failing", func(context.Context) error { return boom })
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, g.Wait(), boom)
}

func TestGroupCancelCause(t *testing.T) {
	cause := errors.New("shutdown requested")
	g, _ := xrun.NewGroup(context.Background())
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	g.Cancel(cause)
	assert.ErrorIs(t, g.Wait(), cause)
}

func TestGroupParentCanceled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	g, _ := xrun.NewGroup(parent)
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()
	assert.NoError(t, g.Wait())
}

func TestGroupNilFunc(t *testing.T) {
	g, _ := xrun.NewGroup(context.Background())
	g.Go(nil)
	assert.ErrorIs(t, g.Wait(), xrun.ErrNilFunc)
}

func TestRunSignal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGTERM

	err := xrun.Run(context.Background(),
		[]xrun.Option{xrun.WithSignalChannelForTest(sigCh)},
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

	require.ErrorIs(t, err, xrun.ErrSignal)
	var se *xrun.SignalError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, syscall.SIGTERM, se.Signal)
}

func TestRunWithoutSignalHandler(t *testing.T) {
	err := xrun.Run(context.Background(),
		[]xrun.Option{xrun.WithoutSignalHandler()},
		func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestHTTPServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) }),
		ReadHeaderTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- xrun.HTTPServer(srv, time.Second)(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	http.DefaultClient.CloseIdleConnections()
}

func TestHTTPServerNil(t *testing.T) {
	assert.ErrorIs(t, xrun.HTTPServer(nil, 0)(context.Background()), xrun.ErrNilServer)
}
