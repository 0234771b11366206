package xtracing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xtracing/pkg/observability/xheader"
	"github.com/omeyang/xtracing/pkg/observability/xmetrics"
	"github.com/omeyang/xtracing/pkg/observability/xmirror"
	"github.com/omeyang/xtracing/pkg/observability/xtrace"
)

// ErrInvalidMaxBuffer WithMaxBuffer 传入负数。
var ErrInvalidMaxBuffer = errors.New("xtracing: max buffer must be >= 0")

// Tracing 组合 Response Mirror、Trace Context Bridge 与头部捕获/转发。
//
// 由 New 创建，之后不可变；进程退出前调用 Shutdown。
type Tracing struct {
	tp      *sdktrace.TracerProvider
	bridge  *xtrace.Bridge
	headers *xheader.Config
	mirror  *xmirror.Mirror
}

// New 创建 Tracing。配置错误（如未启用任何传播格式、非法头部名称）在此返回。
func New(opts ...Option) (*Tracing, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxBuffer < 0 {
		return nil, ErrInvalidMaxBuffer
	}

	recOpts := []xmetrics.Option{}
	if o.mp != nil {
		recOpts = append(recOpts, xmetrics.WithMeterProvider(o.mp))
	}
	rec, err := xmetrics.New(recOpts...)
	if err != nil {
		return nil, err
	}

	headers, err := xheader.NewConfig(append(o.headerOpts, xheader.WithMetrics(rec))...)
	if err != nil {
		return nil, err
	}

	pb := newProviderBuilder()
	for _, fn := range o.provider {
		fn(pb)
	}
	tp, err := pb.build(o.serviceName)
	if err != nil {
		return nil, fmt.Errorf("xtracing: build tracer provider: %w", err)
	}

	bridgeOpts := append([]xtrace.Option{xtrace.WithTracerProvider(tp), xtrace.WithMetrics(rec)}, o.bridgeOpts...)
	if o.mp != nil {
		bridgeOpts = append(bridgeOpts, xtrace.WithMeterProvider(o.mp))
	}
	bridge, err := xtrace.NewBridge(bridgeOpts...)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, err
	}

	t := &Tracing{
		tp:      tp,
		bridge:  bridge,
		headers: headers,
		mirror:  xmirror.New(xmirror.WithMaxBuffer(o.maxBuffer), xmirror.WithMetrics(rec)),
	}
	if o.global {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(bridge.Propagator())
	}
	return t, nil
}

// Middleware 返回入站中间件：mirror → bridge → capture → next。
func (t *Tracing) Middleware() func(http.Handler) http.Handler {
	mirror, bridge, capture := t.mirror.Middleware(), t.bridge.Middleware(), t.headers.Middleware()
	return func(next http.Handler) http.Handler {
		return mirror(bridge(capture(next)))
	}
}

// Handler 用 Middleware 包装 next。
func (t *Tracing) Handler(next http.Handler) http.Handler { return t.Middleware()(next) }

// Transport 返回出站 RoundTripper：先由 Bridge 注入子 span 追踪头部，
// 再补充捕获的头部（不覆盖已有头部）。
func (t *Tracing) Transport(base http.RoundTripper) http.RoundTripper {
	return t.bridge.Transport(t.headers.Transport(base))
}

// TransportWith 与 Transport 相同，但按 cfg 的白名单转发捕获的头部。
//
// 用于单个下游只应收到部分头部的场景；cfg 为 nil 时等同于 Transport。
func (t *Tracing) TransportWith(cfg *xheader.Config, base http.RoundTripper) http.RoundTripper {
	if cfg == nil {
		cfg = t.headers
	}
	return t.bridge.Transport(cfg.Transport(base))
}

// Client 返回使用 Transport 的 http.Client。
func (t *Tracing) Client(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: t.Transport(base)}
}

// Propagator 返回出站注入使用的 propagator。
func (t *Tracing) Propagator() propagation.TextMapPropagator { return t.bridge.Propagator() }

// TracerProvider 返回内部 TracerProvider。
func (t *Tracing) TracerProvider() trace.TracerProvider { return t.tp }

// Bridge 返回 Trace Context Bridge，用于 gRPC 拦截器等场景。
func (t *Tracing) Bridge() *xtrace.Bridge { return t.bridge }

// Headers 返回头部传播配置。
func (t *Tracing) Headers() *xheader.Config { return t.headers }

// Mirror 返回响应镜像中间件。
func (t *Tracing) Mirror() *xmirror.Mirror { return t.mirror }

// Shutdown 刷出并关闭 TracerProvider。
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.tp.Shutdown(ctx)
}
