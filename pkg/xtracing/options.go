package xtracing

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xtracing/pkg/observability/xheader"
	"github.com/omeyang/xtracing/pkg/observability/xsampling"
	"github.com/omeyang/xtracing/pkg/observability/xtrace"
)

// Option New 的选项
type Option func(*options)

type options struct {
	headerOpts  []xheader.ConfigOption
	bridgeOpts  []xtrace.Option
	provider    []func(*ProviderBuilder)
	maxBuffer   int
	mp          metric.MeterProvider
	serviceName string
	global      bool
}

// WithHeaders 追加需要捕获并转发的头部名称。
func WithHeaders(names ...string) Option {
	return func(o *options) { o.headerOpts = append(o.headerOpts, xheader.WithHeaders(names...)) }
}

// WithLegacyHeaders 同时捕获并转发 B3 与 x-ot-span-context 原始头部。
func WithLegacyHeaders() Option {
	return func(o *options) { o.headerOpts = append(o.headerOpts, xheader.WithLegacyHeaders()) }
}

// WithRename 设置转发时的头部重命名。
func WithRename(m map[string]string) Option {
	return func(o *options) { o.headerOpts = append(o.headerOpts, xheader.WithRename(m)) }
}

// WithProviderConfig 在构建 TracerProvider 前修改其配置，可多次调用。
func WithProviderConfig(fn func(*ProviderBuilder)) Option {
	return func(o *options) {
		if fn != nil {
			o.provider = append(o.provider, fn)
		}
	}
}

// WithEmit 设置出站传播格式，默认 W3C 与 B3 同时写入。
func WithEmit(e xtrace.Emit) Option {
	return func(o *options) { o.bridgeOpts = append(o.bridgeOpts, xtrace.WithEmit(e)) }
}

// WithRootSampled 设置新建根上下文的采样标志。
func WithRootSampled(sampled bool) Option {
	return func(o *options) { o.bridgeOpts = append(o.bridgeOpts, xtrace.WithRootSampled(sampled)) }
}

// WithRootSampler 由 s 决定新建根上下文的采样标志，优先于 WithRootSampled。
func WithRootSampler(s xsampling.Sampler) Option {
	return func(o *options) { o.bridgeOpts = append(o.bridgeOpts, xtrace.WithRootSampler(s)) }
}

// WithStrictActivation 未激活追踪上下文的出站调用直接失败。
func WithStrictActivation(strict bool) Option {
	return func(o *options) { o.bridgeOpts = append(o.bridgeOpts, xtrace.WithStrictActivation(strict)) }
}

// WithBaggage 是否传播 W3C baggage，默认开启。
func WithBaggage(enabled bool) Option {
	return func(o *options) { o.bridgeOpts = append(o.bridgeOpts, xtrace.WithBaggage(enabled)) }
}

// WithMaxBuffer 设置响应镜像的缓冲上限（字节），0 表示不限制。
func WithMaxBuffer(n int) Option {
	return func(o *options) { o.maxBuffer = n }
}

// WithMeterProvider 设置传播指标与 HTTP 客户端指标使用的 MeterProvider。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// WithServiceName 设置 TracerProvider 资源上的 service.name。
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithGlobal 将 TracerProvider 与出站 propagator 安装为 OTel 全局默认值。
//
// 只应在进程初始化阶段调用一次。
func WithGlobal(enabled bool) Option {
	return func(o *options) { o.global = enabled }
}
