// tracedemo 是追踪传播中间件的演示服务。
//
// 用法:
//
//	tracedemo serve [--config demo.yaml] [--addr :8080] [--upstream http://host:port]
//
// 路由:
//
//	/health        健康检查，返回 "Healthy"
//	/activity      返回当前请求激活的追踪上下文
//	/echo-headers  以 JSON 返回入站请求头部
//	/http-request  并发调用上游 /echo-headers，返回上游收到的头部与本地追踪上下文
//
// 配置文件变更时自动重载日志级别，其余配置需重启生效。
//
// 示例:
//
//	curl -H 'x-b3-traceid: 0af7651916cd43dd8448eb211c80319c' \
//	     -H 'x-b3-spanid: b7ad6b7169203331' -i localhost:8080/http-request
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xtracing/pkg/config/xconf"
	"github.com/omeyang/xtracing/pkg/lifecycle/xrun"
	"github.com/omeyang/xtracing/pkg/observability/xlog"
	"github.com/omeyang/xtracing/pkg/xtracing"
)

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "tracedemo",
		Usage:   "追踪传播中间件演示服务",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "启动 HTTP 服务",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "配置文件路径（yaml/json）",
					},
					&cli.StringFlag{
						Name:  "addr",
						Usage: "监听地址，覆盖配置文件",
					},
					&cli.StringFlag{
						Name:  "upstream",
						Usage: "/http-request 调用的上游地址，为空时调用自身",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "日志级别 (debug/info/warn/error)",
					},
				},
				Action: serve,
			},
		},
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run(args []string) int {
	if err := createApp().Run(context.Background(), args); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cmd *cli.Command) error {
	var src xconf.Config
	if path := cmd.String("config"); path != "" {
		c, err := xconf.New(path)
		if err != nil {
			return err
		}
		src = c
	}
	cfg, err := loadConfig(src)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	logger, cleanup, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()
	xlog.SetDefault(logger)

	opts, err := cfg.Tracing.Options()
	if err != nil {
		return err
	}
	tr, err := xtracing.New(append(opts, xtracing.WithGlobal(true))...)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tr.Shutdown(sctx); err != nil {
			logger.Warn(sctx, "tracedemo: tracing shutdown failed", xlog.Err(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(tr, cfg.Server),
		ReadHeaderTimeout: 5 * time.Second,
	}
	services := []func(context.Context) error{xrun.HTTPServer(srv, cfg.Server.ShutdownTimeout)}
	if src != nil {
		w, err := xconf.Watch(src, reloadLogLevel(logger, cmd.IsSet("log-level")))
		if err != nil {
			return err
		}
		services = append(services, w.Run)
	}

	logger.Info(ctx, "tracedemo: serving",
		slog.String("addr", cfg.Server.Addr), slog.String("upstream", cfg.Server.Upstream))
	err = xrun.Run(ctx, []xrun.Option{xrun.WithName("tracedemo"), xrun.WithLogger(logger)}, services...)
	if errors.Is(err, xrun.ErrSignal) {
		return nil
	}
	return err
}

// applyFlags 命令行参数优先于配置文件。
func applyFlags(cmd *cli.Command, cfg *appConfig) {
	if cmd.IsSet("addr") {
		cfg.Server.Addr = cmd.String("addr")
	}
	if cmd.IsSet("upstream") {
		cfg.Server.Upstream = cmd.String("upstream")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
}

func newLogger(c logConfig) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(c.Level).
		SetFormat(c.Format).
		SetService("tracedemo")
	if r := c.rotation(); r != nil {
		b.SetRotation(*r)
	}
	return b.Build()
}

// reloadLogLevel 返回配置重载回调，只调整日志级别。
// pinned 为 true 表示级别由 --log-level 指定，重载时保持不变。
func reloadLogLevel(l xlog.LoggerWithLevel, pinned bool) xconf.WatchCallback {
	return func(cfg xconf.Config, err error) {
		ctx := context.Background()
		if err != nil {
			l.Warn(ctx, "tracedemo: config reload failed", xlog.Err(err))
			return
		}
		if pinned {
			l.Debug(ctx, "tracedemo: log level pinned by flag, reload skipped")
			return
		}
		var c logConfig
		if err := cfg.Unmarshal("log", &c); err != nil {
			l.Warn(ctx, "tracedemo: config reload failed", xlog.Err(err))
			return
		}
		level, err := xlog.ParseLevel(c.Level)
		if err != nil {
			l.Warn(ctx, "tracedemo: invalid log level", xlog.Err(err))
			return
		}
		l.SetLevel(level)
		l.Info(ctx, "tracedemo: log level reloaded", slog.String("level", level.String()))
	}
}
