package xtrace

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xtracing/pkg/observability/xlog"
)

// =============================================================================
// HTTP 出站传播
// =============================================================================

type callerSpanKey struct{}

// Transport 返回出站 RoundTripper。
//
// 每次调用创建一个客户端子 span（同一 trace ID、新 span ID、父为当前 span），
// 并按 Emit 写入 traceparent 和/或 x-b3-* 头部。base 为 nil 时使用 http.DefaultTransport。
//
// 调用方 context 中没有激活的追踪上下文时：严格模式返回 ErrMissingActivation，
// 否则新建根上下文并记录告警。
func (b *Bridge) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	opts := []otelhttp.Option{
		otelhttp.WithTracerProvider(b.tp),
		otelhttp.WithPropagators(b.propagator),
	}
	if b.mp != nil {
		opts = append(opts, otelhttp.WithMeterProvider(b.mp))
	}
	var inner http.RoundTripper = base
	if b.emit.Has(EmitB3) {
		inner = parentInjector{next: base}
	}
	return &activationTransport{
		bridge: b,
		next:   otelhttp.NewTransport(inner, opts...),
	}
}

// Client 返回使用 Transport 的 http.Client。
func (b *Bridge) Client(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: b.Transport(base)}
}

// activationTransport 确保出站请求的 context 上有激活的追踪上下文，
// 并记下调用方 span ID 作为出站请求的父 span。
type activationTransport struct {
	bridge *Bridge
	next   http.RoundTripper
}

func (t *activationTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		if t.bridge.strict {
			if r.Body != nil {
				_ = r.Body.Close()
			}
			return nil, fmt.Errorf("%w: %s %s", ErrMissingActivation, r.Method, r.URL.Redacted())
		}
		xlog.Warn(ctx, "xtrace: outbound call without active trace context, starting new trace",
			xlog.Method(r.Method), xlog.Path(r.URL.Path))
		ctx = t.bridge.Activate(ctx, Extraction{}, "")
		sc = trace.SpanContextFromContext(ctx)
	}
	ctx = context.WithValue(ctx, callerSpanKey{}, sc.SpanID())
	return t.next.RoundTrip(r.WithContext(ctx))
}

// parentInjector 在 otelhttp 注入之后补写 x-b3-parentspanid。
//
// B3 propagator 只写 traceid/spanid/sampled，父 span 需要单独写入。
// 此时请求已被 otelhttp 克隆，可以直接修改头部。
type parentInjector struct {
	next http.RoundTripper
}

func (p parentInjector) RoundTrip(r *http.Request) (*http.Response, error) {
	if parent, ok := r.Context().Value(callerSpanKey{}).(trace.SpanID); ok && parent.IsValid() {
		r.Header.Set(HeaderB3ParentSpan, parent.String())
	}
	return p.next.RoundTrip(r)
}
