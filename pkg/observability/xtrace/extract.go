package xtrace

import (
	"context"
	"strings"

	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xtracing/pkg/context/xctx"
	"github.com/omeyang/xtracing/pkg/observability/xlog"
)

// =============================================================================
// 头部常量
// =============================================================================

// 入站/出站使用的追踪头部（小写，HTTP/2 与 gRPC metadata 要求小写）。
const (
	HeaderTraceparent  = "traceparent"
	HeaderTracestate   = "tracestate"
	HeaderB3TraceID    = "x-b3-traceid"
	HeaderB3SpanID     = "x-b3-spanid"
	HeaderB3ParentSpan = "x-b3-parentspanid"
	HeaderB3Sampled    = "x-b3-sampled"
	HeaderB3Flags      = "x-b3-flags"
	HeaderB3Single     = "b3"
	HeaderRequestID    = "x-request-id"
)

// idHeaders 值为十六进制 ID 或标志位的头部，解码前统一转为小写并去除空白。
var idHeaders = map[string]struct{}{
	HeaderTraceparent:  {},
	HeaderB3TraceID:    {},
	HeaderB3SpanID:     {},
	HeaderB3ParentSpan: {},
	HeaderB3Sampled:    {},
	HeaderB3Flags:      {},
	HeaderB3Single:     {},
}

// b3IDHeaders 携带 B3 标识的头部；只有采样位或 flags 时不算 B3 上下文。
var b3IDHeaders = [...]string{HeaderB3TraceID, HeaderB3SpanID, HeaderB3Single}

// normalizingCarrier 对 ID 类头部做大小写归一化，其余头部原样透传。
//
// 上游常见大写十六进制，而 traceparent / B3 解码只接受小写。
type normalizingCarrier struct {
	propagation.TextMapCarrier
}

func (c normalizingCarrier) Get(key string) string {
	v := c.TextMapCarrier.Get(key)
	if _, ok := idHeaders[strings.ToLower(key)]; ok {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return v
}

// =============================================================================
// 解码
// =============================================================================

// Extraction 入站头部的解码结果。
//
// SpanContext 无效表示没有可用的入站上下文，调用方应新建根上下文。
type Extraction struct {
	SpanContext  trace.SpanContext
	ParentSpanID string
	Scheme       Scheme
}

// Valid 报告是否解码出了有效的入站上下文。
func (e Extraction) Valid() bool { return e.SpanContext.IsValid() }

var (
	w3cPropagator = propagation.TraceContext{}
	b3Propagator  = b3.New()
)

// Extract 从 carrier 解码入站追踪上下文，不修改任何 context。
//
// 顺序：traceparent 合法时只使用 W3C，不与 B3 字段合并；
// 否则尝试 B3。格式非法的头部按缺失处理并记录告警。
func (b *Bridge) Extract(ctx context.Context, carrier propagation.TextMapCarrier) Extraction {
	nc := normalizingCarrier{carrier}

	if nc.Get(HeaderTraceparent) != "" {
		sc := trace.SpanContextFromContext(w3cPropagator.Extract(context.Background(), nc))
		if sc.IsValid() {
			return Extraction{SpanContext: sc, Scheme: SchemeW3C}
		}
		b.malformed(ctx, HeaderTraceparent)
	}

	if !hasAny(nc, b3IDHeaders[:]) {
		return Extraction{}
	}
	sc := trace.SpanContextFromContext(b3Propagator.Extract(context.Background(), nc))
	if !sc.IsValid() {
		b.malformed(ctx, HeaderB3TraceID)
		return Extraction{}
	}
	return Extraction{SpanContext: sc, ParentSpanID: b3Parent(nc), Scheme: SchemeB3}
}

func (b *Bridge) malformed(ctx context.Context, header string) {
	xlog.Warn(ctx, "xtrace: malformed inbound trace header ignored", xlog.Header(header))
	b.metrics.Malformed(ctx, header)
}

func hasAny(c propagation.TextMapCarrier, keys []string) bool {
	for _, k := range keys {
		if c.Get(k) != "" {
			return true
		}
	}
	return false
}

// b3Parent 读取 B3 父 span ID：多头部优先，其次单头部第四段。
func b3Parent(c propagation.TextMapCarrier) string {
	if p := c.Get(HeaderB3ParentSpan); validSpanID(p) {
		return p
	}
	if single := c.Get(HeaderB3Single); single != "" {
		parts := strings.Split(single, "-")
		if len(parts) == 4 && validSpanID(parts[3]) {
			return parts[3]
		}
	}
	return ""
}

func validSpanID(s string) bool {
	id, err := trace.SpanIDFromHex(s)
	return err == nil && id.IsValid()
}

// =============================================================================
// 激活
// =============================================================================

// Activate 将解码结果激活到 context：有效时作为远端父上下文，
// 否则新建根上下文。同时把追踪字段同步到 xctx 供日志与访问器使用。
//
// requestID 为空时生成新的 UUID。
func (b *Bridge) Activate(ctx context.Context, ex Extraction, requestID string) context.Context {
	sc := ex.SpanContext
	scheme := ex.Scheme
	if sc.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, sc)
	} else {
		sc = b.newRoot()
		scheme = SchemeRoot
		ex.ParentSpanID = ""
		ctx = trace.ContextWithSpanContext(ctx, sc)
	}
	if requestID == "" {
		requestID = xctx.GenerateRequestID()
	}

	// ctx 非 nil，WithTrace 不会返回错误
	ctx, _ = xctx.WithTrace(ctx, xctx.Trace{
		TraceID:      sc.TraceID().String(),
		SpanID:       sc.SpanID().String(),
		ParentSpanID: ex.ParentSpanID,
		RequestID:    requestID,
		TraceFlags:   sc.TraceFlags().String(),
		Scheme:       string(scheme),
	})
	b.metrics.Extracted(ctx, string(scheme))
	return ctx
}

// ExtractAndActivate 解码 carrier 并激活，返回携带追踪上下文的 context。
func (b *Bridge) ExtractAndActivate(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if b.baggage {
		ctx = propagation.Baggage{}.Extract(ctx, carrier)
	}
	ex := b.Extract(ctx, carrier)
	return b.Activate(ctx, ex, strings.TrimSpace(carrier.Get(HeaderRequestID)))
}

// newRoot 生成新的根 SpanContext。
func (b *Bridge) newRoot() trace.SpanContext {
	// 生成函数保证非零 ID，解码不会失败
	traceID := xctx.GenerateTraceID()
	tid, _ := trace.TraceIDFromHex(traceID)
	sid, _ := trace.SpanIDFromHex(xctx.GenerateSpanID())
	var flags trace.TraceFlags
	if b.rootSampler.ShouldSample(traceID) {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: flags,
	})
}
