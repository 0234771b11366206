package xrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xtracing/pkg/observability/xlog"
)

var (
	// ErrSignal 因收到系统信号而退出，使用 errors.Is 判断。
	ErrSignal = errors.New("received signal")

	// ErrNilFunc 传入的服务函数为 nil
	ErrNilFunc = errors.New("xrun: nil service func")

	// ErrNilServer HTTPServer 传入的 server 为 nil
	ErrNilServer = errors.New("xrun: nil http server")
)

// SignalError 记录触发退出的信号。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string { return fmt.Sprintf("received signal %v", e.Signal) }

func (e *SignalError) Unwrap() error { return ErrSignal }

// Group 基于 errgroup 管理多个服务的并发运行与协调关闭。
//
// 任一服务返回错误或 Cancel 被调用时，所有服务的 ctx 被取消。
// Wait 只应调用一次。
type Group struct {
	eg     *errgroup.Group
	ctx    context.Context
	cause  context.Context
	cancel context.CancelCauseFunc
	name   string
	logger xlog.Logger
}

// NewGroup 创建 Group，返回的 ctx 在任一服务失败时取消。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	o := applyOptions(opts)
	cause, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(cause)
	return &Group{
		eg:     eg,
		ctx:    egCtx,
		cause:  cause,
		cancel: cancel,
		name:   o.name,
		logger: o.logger,
	}, egCtx
}

// Go 启动服务 fn。
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.GoWithName("", fn)
}

// GoWithName 启动服务 fn，并以 name 记录退出日志。
func (g *Group) GoWithName(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.log().Warn(g.ctx, "xrun: service exited with error",
				slog.String("group", g.name), slog.String("service", name), xlog.Err(err))
		}
		return err
	})
}

// Cancel 以 cause 为原因取消所有服务，Wait 会返回该原因。
func (g *Group) Cancel(cause error) { g.cancel(cause) }

// Wait 等待所有服务退出。
//
// 服务因取消而返回的 context.Canceled 会被过滤，
// 若取消带有显式原因（如 SignalError），返回该原因。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if g.cause.Err() != nil {
		if c := context.Cause(g.cause); !errors.Is(c, context.Canceled) {
			return c
		}
		return nil
	}
	return err
}

func (g *Group) log() xlog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return xlog.Default()
}
