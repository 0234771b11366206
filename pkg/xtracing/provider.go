package xtracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ProviderBuilder 在 New 内部构建 TracerProvider 前供调用方追加配置。
//
// 只在 WithProviderConfig 回调期间有效，不要保存引用。
type ProviderBuilder struct {
	sampler    sdktrace.Sampler
	processors []sdktrace.SpanProcessor
	opts       []sdktrace.TracerProviderOption
}

// AddSpanProcessor 追加 SpanProcessor（如导出器的 BatchSpanProcessor）。
func (b *ProviderBuilder) AddSpanProcessor(p sdktrace.SpanProcessor) *ProviderBuilder {
	if p != nil {
		b.processors = append(b.processors, p)
	}
	return b
}

// AddOption 追加任意 TracerProviderOption。
func (b *ProviderBuilder) AddOption(opt sdktrace.TracerProviderOption) *ProviderBuilder {
	if opt != nil {
		b.opts = append(b.opts, opt)
	}
	return b
}

// SetSampler 替换默认采样器 ParentBased(AlwaysSample)。
func (b *ProviderBuilder) SetSampler(s sdktrace.Sampler) *ProviderBuilder {
	if s != nil {
		b.sampler = s
	}
	return b
}

func (b *ProviderBuilder) build(serviceName string) (*sdktrace.TracerProvider, error) {
	res := resource.Default()
	if serviceName != "" {
		merged, err := resource.Merge(res, resource.NewSchemaless(attribute.String("service.name", serviceName)))
		if err != nil {
			return nil, err
		}
		res = merged
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(b.sampler),
		sdktrace.WithResource(res),
	}
	for _, p := range b.processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	// 调用方选项放在最后，可覆盖上面的默认值
	opts = append(opts, b.opts...)
	return sdktrace.NewTracerProvider(opts...), nil
}

func newProviderBuilder() *ProviderBuilder {
	return &ProviderBuilder{sampler: sdktrace.ParentBased(sdktrace.AlwaysSample())}
}
