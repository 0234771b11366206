package xrun

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omeyang/xtracing/pkg/observability/xlog"
)

// Option Group 选项
type Option func(*options)

type options struct {
	name     string
	logger   xlog.Logger
	signals  []os.Signal
	noSignal bool
	sigCh    <-chan os.Signal // 测试注入
}

func applyOptions(opts []Option) options {
	o := options{name: "xrun", signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithName 设置 Group 名称（用于日志）。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger 设置生命周期日志的 Logger，默认使用 xlog.Default()。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSignals 覆盖 Run 监听的信号，默认 SIGINT、SIGTERM、SIGQUIT。
func WithSignals(signals ...os.Signal) Option {
	cp := append([]os.Signal(nil), signals...)
	return func(o *options) {
		if len(cp) > 0 {
			o.signals = cp
		}
	}
}

// WithoutSignalHandler 禁用 Run 的信号监听。
func WithoutSignalHandler() Option {
	return func(o *options) { o.noSignal = true }
}

// Run 运行服务并监听退出信号。
//
// 收到信号时所有服务被取消，返回 *SignalError（errors.Is(err, ErrSignal) 为 true）。
func Run(ctx context.Context, opts []Option, services ...func(ctx context.Context) error) error {
	o := applyOptions(opts)
	g, _ := NewGroup(ctx, opts...)

	if !o.noSignal {
		g.Go(func(ctx context.Context) error {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, o.signals...)
			defer signal.Stop(sigCh)

			var sig os.Signal
			select {
			case sig = <-sigCh:
			case sig = <-o.sigCh:
			case <-ctx.Done():
				return nil
			}
			g.log().Info(ctx, "xrun: received signal",
				slog.String("group", o.name), slog.String("signal", sig.String()))
			g.Cancel(&SignalError{Signal: sig})
			return nil
		})
	}
	for _, svc := range services {
		g.Go(svc)
	}
	return g.Wait()
}

// HTTPServerInterface *http.Server 满足此接口。
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 将 server 包装为服务函数：ctx 取消时在 shutdownTimeout 内优雅关闭。
// shutdownTimeout <= 0 表示等待所有在途请求完成。
func HTTPServer(server HTTPServerInterface, shutdownTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}
		shutdownErr := make(chan error, 1)
		stop := context.AfterFunc(ctx, func() {
			sctx := context.Background()
			if shutdownTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(sctx, shutdownTimeout)
				defer cancel()
			}
			shutdownErr <- server.Shutdown(sctx)
		})

		err := server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			return err
		}
		if stop() {
			// 外部直接关闭了 server，ctx 未取消
			return nil
		}
		return <-shutdownErr
	}
}
