package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	KeyError      = "error"
	KeyDuration   = "duration"
	KeyService    = "service"
	KeyComponent  = "component"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatusCode = "status_code"
	KeyHeader     = "header"
	KeyScheme     = "scheme"
)

// Err 创建错误属性，err 为 nil 时返回空属性（slog 会忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性
func Duration(d time.Duration) slog.Attr { return slog.String(KeyDuration, d.String()) }

// Component 标识日志来源组件
func Component(name string) slog.Attr { return slog.String(KeyComponent, name) }

// Method HTTP 方法
func Method(m string) slog.Attr { return slog.String(KeyMethod, m) }

// Path 请求路径
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// StatusCode HTTP 状态码
func StatusCode(code int) slog.Attr { return slog.Int(KeyStatusCode, code) }

// Header 头部名称
func Header(name string) slog.Attr { return slog.String(KeyHeader, name) }

// Scheme 追踪上下文来源（w3c / b3 / root）
func Scheme(s string) slog.Attr { return slog.String(KeyScheme, s) }
