package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xtracing/pkg/observability/xrotate"
)

// Builder 日志配置构建器
//
// first-error-wins：第一个配置错误之后的 Set 调用仍会执行，但 Build 返回该错误。
type Builder struct {
	output    io.Writer
	levelVar  *slog.LevelVar
	format    string
	addSource bool
	enrich    bool
	attrs     []slog.Attr
	rotator   xrotate.Rotator
	onError   func(error)
	err       error
}

// New 创建构建器：stderr、Info、text、启用 enrich。
func New() *Builder {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)
	return &Builder{
		output:   os.Stderr,
		levelVar: lv,
		format:   "text",
		enrich:   true,
	}
}

func (b *Builder) setErr(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// SetOutput 设置输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		return b.setErr(err)
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空值视为 text。
func (b *Builder) SetFormat(format string) *Builder {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "text":
		b.format = "text"
	case "json":
		b.format = "json"
	default:
		return b.setErr(fmt.Errorf("xlog: unknown format %q", format))
	}
	return b
}

// SetAddSource 是否记录源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 是否从 context 注入追踪字段（trace_id、span_id 等），默认启用。
func (b *Builder) SetEnrich(enable bool) *Builder {
	b.enrich = enable
	return b
}

// SetService 为每条日志添加固定的 service 属性。
func (b *Builder) SetService(name string) *Builder {
	if name != "" {
		b.attrs = append(b.attrs, slog.String(KeyService, name))
	}
	return b
}

// SetRotation 输出到轮转文件，cfg.Filename 为空时保持原输出。
func (b *Builder) SetRotation(cfg xrotate.Config) *Builder {
	if cfg.Filename == "" {
		return b
	}
	r, err := xrotate.New(cfg)
	if err != nil {
		return b.setErr(err)
	}
	b.rotator = r
	b.output = r
	return b
}

// SetOnError 设置 handler 写入失败时的回调，回调在日志调用方同步执行。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

// Build 构建 Logger
//
// 返回的 cleanup 关闭轮转文件，可重复调用。
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		if b.rotator != nil {
			_ = b.rotator.Close()
		}
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{Level: b.levelVar, AddSource: b.addSource}
	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}
	if b.enrich {
		handler = &EnrichHandler{base: handler}
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}

	logger := &xlogger{
		handler:    handler,
		levelVar:   b.levelVar,
		addSource:  b.addSource,
		onError:    b.onError,
		errorCount: new(atomic.Uint64),
	}

	rotator := b.rotator
	cleanup := sync.OnceValue(func() error {
		if rotator == nil {
			return nil
		}
		return rotator.Close()
	})
	return logger, cleanup, nil
}
