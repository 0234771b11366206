package xtrace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xtracing/pkg/context/xctx"
	"github.com/omeyang/xtracing/pkg/observability/xmetrics"
	"github.com/omeyang/xtracing/pkg/observability/xsampling"
)

const instrumentationName = "github.com/omeyang/xtracing/xtrace"

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNoEmitScheme 未启用任何出站传播格式，属于启动期配置错误。
	ErrNoEmitScheme = errors.New("xtrace: no emit scheme configured")

	// ErrNilTracerProvider WithTracerProvider 传入 nil。
	ErrNilTracerProvider = errors.New("xtrace: nil tracer provider")

	// ErrMissingActivation 严格模式下在没有激活追踪上下文时发起出站调用。
	ErrMissingActivation = errors.New("xtrace: outbound call without active trace context")

	// ErrUnknownEmit ParseEmit 无法识别的取值。
	ErrUnknownEmit = errors.New("xtrace: unknown emit scheme")
)

// =============================================================================
// 传播格式
// =============================================================================

// Emit 出站请求写入的传播格式（位集合）。
type Emit uint8

const (
	// EmitW3C 写入 traceparent / tracestate
	EmitW3C Emit = 1 << iota
	// EmitB3 写入 x-b3-traceid / x-b3-spanid / x-b3-parentspanid / x-b3-sampled
	EmitB3

	EmitBoth = EmitW3C | EmitB3
)

// Has 报告 e 是否包含 s 的全部格式。
func (e Emit) Has(s Emit) bool { return e&s == s && s != 0 }

func (e Emit) String() string {
	switch e {
	case EmitW3C:
		return "w3c"
	case EmitB3:
		return "b3"
	case EmitBoth:
		return "both"
	}
	return fmt.Sprintf("Emit(%d)", uint8(e))
}

// ParseEmit 解析 "w3c"、"b3"、"both"（大小写不敏感），空字符串视为 both。
func ParseEmit(s string) (Emit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return EmitBoth, nil
	case "w3c", "tracecontext":
		return EmitW3C, nil
	case "b3":
		return EmitB3, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEmit, s)
}

// Scheme 激活的追踪上下文来源。
type Scheme string

const (
	SchemeW3C  Scheme = xctx.SchemeW3C
	SchemeB3   Scheme = xctx.SchemeB3
	SchemeRoot Scheme = xctx.SchemeRoot
)

// =============================================================================
// 选项
// =============================================================================

// Option Bridge 选项
type Option func(*config)

type config struct {
	tp          trace.TracerProvider
	tpSet       bool
	mp          metric.MeterProvider
	emit        Emit
	rootSampler xsampling.Sampler
	strict      bool
	baggage     bool
	metrics     *xmetrics.Recorder
}

// WithTracerProvider 设置创建出站子 span 的 TracerProvider。
//
// 需要能生成新 span ID 的实现（如 sdktrace.TracerProvider）。
// 未设置时 Bridge 自建一个 ParentBased(AlwaysSample) 的 SDK provider，
// 并在 Shutdown 时关闭。
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tp = tp
		c.tpSet = true
	}
}

// WithMeterProvider 设置 otelhttp 客户端指标使用的 MeterProvider。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) { c.mp = mp }
}

// WithEmit 设置出站传播格式，默认 EmitBoth。
func WithEmit(e Emit) Option {
	return func(c *config) { c.emit = e }
}

// WithRootSampled 设置新建根上下文的采样标志，默认 false。
func WithRootSampled(sampled bool) Option {
	return func(c *config) {
		if sampled {
			c.rootSampler = xsampling.Always()
		} else {
			c.rootSampler = xsampling.Never()
		}
	}
}

// WithRootSampler 由 s 按新生成的 trace ID 决定根上下文的采样标志。nil 被忽略。
func WithRootSampler(s xsampling.Sampler) Option {
	return func(c *config) {
		if s != nil {
			c.rootSampler = s
		}
	}
}

// WithStrictActivation 严格模式下，没有激活上下文的出站调用返回 ErrMissingActivation；
// 默认（false）合成根上下文并记录告警。
func WithStrictActivation(strict bool) Option {
	return func(c *config) { c.strict = strict }
}

// WithBaggage 是否提取和传播 W3C baggage，默认 true。
func WithBaggage(enabled bool) Option {
	return func(c *config) { c.baggage = enabled }
}

// WithMetrics 设置传播指标记录器。
func WithMetrics(r *xmetrics.Recorder) Option {
	return func(c *config) { c.metrics = r }
}

// =============================================================================
// Bridge
// =============================================================================

// Bridge 入站追踪头部与进程内追踪上下文之间的桥接。
//
// 创建后不可变，可被任意多个并发请求共享。
type Bridge struct {
	tp          trace.TracerProvider
	owned       *sdktrace.TracerProvider
	tracer      trace.Tracer
	mp          metric.MeterProvider
	emit        Emit
	rootSampler xsampling.Sampler
	strict      bool
	baggage     bool
	metrics     *xmetrics.Recorder
	propagator  propagation.TextMapPropagator
}

// NewBridge 创建 Bridge。
func NewBridge(opts ...Option) (*Bridge, error) {
	c := config{emit: EmitBoth, rootSampler: xsampling.Never(), baggage: true}
	for _, opt := range opts {
		opt(&c)
	}
	if c.emit&EmitBoth == 0 {
		return nil, ErrNoEmitScheme
	}
	if c.tpSet && c.tp == nil {
		return nil, ErrNilTracerProvider
	}

	b := &Bridge{
		tp:          c.tp,
		mp:          c.mp,
		emit:        c.emit & EmitBoth,
		rootSampler: c.rootSampler,
		strict:      c.strict,
		baggage:     c.baggage,
		metrics:     c.metrics,
	}
	if b.tp == nil {
		b.owned = sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())))
		b.tp = b.owned
	}
	b.tracer = b.tp.Tracer(instrumentationName)
	b.propagator = newEmitPropagator(b.emit, b.baggage)
	return b, nil
}

// newEmitPropagator 按出站格式组合 propagator。B3 使用多头部编码。
func newEmitPropagator(emit Emit, baggage bool) propagation.TextMapPropagator {
	var ps []propagation.TextMapPropagator
	if emit.Has(EmitW3C) {
		ps = append(ps, propagation.TraceContext{})
	}
	if emit.Has(EmitB3) {
		ps = append(ps, b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)))
	}
	if baggage {
		ps = append(ps, propagation.Baggage{})
	}
	return propagation.NewCompositeTextMapPropagator(ps...)
}

// Emit 返回出站传播格式。
func (b *Bridge) Emit() Emit { return b.emit }

// Propagator 返回出站注入使用的组合 propagator。
func (b *Bridge) Propagator() propagation.TextMapPropagator { return b.propagator }

// TracerProvider 返回创建出站 span 的 provider。
func (b *Bridge) TracerProvider() trace.TracerProvider { return b.tp }

// Shutdown 关闭 Bridge 自建的 TracerProvider；外部传入的 provider 由调用方管理。
func (b *Bridge) Shutdown(ctx context.Context) error {
	if b.owned == nil {
		return nil
	}
	return b.owned.Shutdown(ctx)
}
