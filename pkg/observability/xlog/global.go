package xlog

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// =============================================================================
// 全局 Logger
//
// 库内部（xtrace、xheader、xmirror）通过全局函数输出告警，
// 宿主进程在启动时用 SetDefault 替换为自己构建的 Logger。
// =============================================================================

var globalLogger atomic.Pointer[LoggerWithLevel]

func init() { ResetDefault() }

func newDefault() LoggerWithLevel {
	// 默认参数不会触发构建错误
	l, _, _ := New().Build()
	return l
}

// Default 返回全局 Logger。
func Default() LoggerWithLevel { return *globalLogger.Load() }

// SetDefault 替换全局 Logger，nil 被忽略。
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	globalLogger.Store(&l)
}

// ResetDefault 恢复为默认 Logger（stderr、Info、text）。
func ResetDefault() {
	l := newDefault()
	globalLogger.Store(&l)
}

func globalLog(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	l := Default()
	if xl, ok := l.(*xlogger); ok {
		xl.logAt(ctx, level, msg, attrs, 2)
		return
	}
	switch level {
	case slog.LevelDebug:
		l.Debug(ctx, msg, attrs...)
	case slog.LevelInfo:
		l.Info(ctx, msg, attrs...)
	case slog.LevelWarn:
		l.Warn(ctx, msg, attrs...)
	default:
		l.Error(ctx, msg, attrs...)
	}
}

// Debug 使用全局 Logger 记录 Debug 日志
func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelDebug, msg, attrs)
}

// Info 使用全局 Logger 记录 Info 日志
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelInfo, msg, attrs)
}

// Warn 使用全局 Logger 记录 Warn 日志
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelWarn, msg, attrs)
}

// Error 使用全局 Logger 记录 Error 日志
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelError, msg, attrs)
}
