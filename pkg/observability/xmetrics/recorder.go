package xmetrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultInstrumentationName = "github.com/omeyang/xtracing/xmetrics"

// 指标名称
const (
	MetricExtractTotal     = "xtracing.extract.total"
	MetricExtractMalformed = "xtracing.extract.malformed"
	MetricHeadersApplied   = "xtracing.headers.applied"
	MetricMirrorHeaders    = "xtracing.mirror.headers"
	MetricMirrorFlush      = "xtracing.mirror.flush.total"
)

// 属性 Key
const (
	AttrScheme = attribute.Key("scheme")
	AttrHeader = attribute.Key("header")
	AttrEarly  = attribute.Key("early")
)

// Option Recorder 选项
type Option func(*config)

type config struct {
	name     string
	provider metric.MeterProvider
}

// WithInstrumentationName 设置 instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认 otel.GetMeterProvider()。
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(c *config) {
		if p != nil {
			c.provider = p
		}
	}
}

// Recorder 记录追踪传播相关的计数器。
//
// nil *Recorder 的所有方法都是空操作，调用方无需判空。
type Recorder struct {
	extract   metric.Int64Counter
	malformed metric.Int64Counter
	applied   metric.Int64Counter
	mirrored  metric.Int64Counter
	flushed   metric.Int64Counter
}

// New 创建 Recorder。
func New(opts ...Option) (*Recorder, error) {
	c := config{name: defaultInstrumentationName, provider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&c)
	}
	meter := c.provider.Meter(c.name)

	r := &Recorder{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&r.extract, MetricExtractTotal, "inbound trace context activations by scheme"},
		{&r.malformed, MetricExtractMalformed, "malformed inbound trace headers"},
		{&r.applied, MetricHeadersApplied, "captured headers applied to outbound requests"},
		{&r.mirrored, MetricMirrorHeaders, "b3 identifiers mirrored onto responses"},
		{&r.flushed, MetricMirrorFlush, "buffered responses flushed"},
	}
	for _, ct := range counters {
		counter, err := meter.Int64Counter(ct.name, metric.WithDescription(ct.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("xmetrics: create counter %s: %w", ct.name, err)
		}
		*ct.dst = counter
	}
	return r, nil
}

// Extracted 记录一次入站激活，scheme 为 w3c / b3 / root。
func (r *Recorder) Extracted(ctx context.Context, scheme string) {
	if r == nil {
		return
	}
	r.extract.Add(ctx, 1, metric.WithAttributes(AttrScheme.String(scheme)))
}

// Malformed 记录一个格式非法的入站追踪头部。
func (r *Recorder) Malformed(ctx context.Context, header string) {
	if r == nil {
		return
	}
	r.malformed.Add(ctx, 1, metric.WithAttributes(AttrHeader.String(header)))
}

// Applied 记录写入出站请求的捕获头部数量。
func (r *Recorder) Applied(ctx context.Context, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.applied.Add(ctx, int64(n))
}

// Mirrored 记录镜像到响应上的 B3 头部。
func (r *Recorder) Mirrored(ctx context.Context, header string) {
	if r == nil {
		return
	}
	r.mirrored.Add(ctx, 1, metric.WithAttributes(AttrHeader.String(header)))
}

// Flushed 记录一次响应刷出，early 表示因超出缓冲上限而提前刷出。
func (r *Recorder) Flushed(ctx context.Context, early bool) {
	if r == nil {
		return
	}
	r.flushed.Add(ctx, 1, metric.WithAttributes(AttrEarly.Bool(early)))
}
