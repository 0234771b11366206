package xtrace

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xtracing/pkg/context/xctx"
)

// =============================================================================
// HTTP 入站中间件
// =============================================================================

// Middleware 返回入站中间件：解码请求头并激活追踪上下文后调用下游。
//
// 头部格式错误不会导致请求失败，只会新建根上下文。
func (b *Bridge) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := b.ExtractAndActivate(r.Context(), propagation.HeaderCarrier(r.Header))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// =============================================================================
// 访问器
//
// 追踪字段在激活时同步到 xctx，以下函数在未激活时返回零值。
// =============================================================================

// TraceInfo 当前请求的追踪信息。
type TraceInfo struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	RequestID    string
	Sampled      bool
	Scheme       Scheme
}

// IsEmpty 报告是否没有激活的追踪上下文。
func (t TraceInfo) IsEmpty() bool { return t.TraceID == "" && t.SpanID == "" }

// TraceInfoFromContext 读取当前请求的追踪信息。
func TraceInfoFromContext(ctx context.Context) TraceInfo {
	tr := xctx.GetTrace(ctx)
	return TraceInfo{
		TraceID:      tr.TraceID,
		SpanID:       tr.SpanID,
		ParentSpanID: tr.ParentSpanID,
		RequestID:    tr.RequestID,
		Sampled:      tr.Sampled(),
		Scheme:       Scheme(tr.Scheme),
	}
}

// TraceID 当前 trace ID（32 位小写十六进制）。
func TraceID(ctx context.Context) string { return xctx.TraceID(ctx) }

// SpanID 当前 span ID（16 位小写十六进制）。
func SpanID(ctx context.Context) string { return xctx.SpanID(ctx) }

// ParentSpanID 入站 B3 请求携带的父 span ID，W3C 与根上下文为空。
func ParentSpanID(ctx context.Context) string { return xctx.ParentSpanID(ctx) }

// TraceFlags 当前 trace flags（两位十六进制）。
func TraceFlags(ctx context.Context) string { return xctx.TraceFlags(ctx) }

// RequestID 当前请求 ID。
func RequestID(ctx context.Context) string { return xctx.RequestID(ctx) }

// Sampled 当前追踪上下文是否被采样。
func Sampled(ctx context.Context) bool { return xctx.GetTrace(ctx).Sampled() }

// SchemeFrom 当前追踪上下文的来源。
func SchemeFrom(ctx context.Context) Scheme { return Scheme(xctx.Scheme(ctx)) }

// Active 报告 ctx 中是否有可用于出站传播的追踪上下文。
func Active(ctx context.Context) bool { return trace.SpanContextFromContext(ctx).IsValid() }
