package xtracing

import (
	"errors"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/omeyang/xtracing/pkg/observability/xsampling"
	"github.com/omeyang/xtracing/pkg/observability/xtrace"
)

// ErrInvalidSampleRatio sample_ratio 超出 [0, 1]。
var ErrInvalidSampleRatio = errors.New("xtracing: sample_ratio must be within [0, 1]")

// Config 配置文件形式的 Tracing 设置，配合 xconf 使用：
//
//	tracing:
//	  service_name: checkout
//	  emit: both
//	  headers: [x-tenant-id]
//	  rename:
//	    x-tenant-id: x-org-id
//	  max_buffer: 1048576
type Config struct {
	ServiceName   string            `koanf:"service_name"`
	Emit          string            `koanf:"emit"`
	Headers       []string          `koanf:"headers"`
	LegacyHeaders bool              `koanf:"legacy_headers"`
	Rename        map[string]string `koanf:"rename"`
	RootSampled   bool              `koanf:"root_sampled"`
	// RootSampleRatio 大于 0 时按 trace ID 一致性采样新建的根上下文，覆盖 RootSampled。
	RootSampleRatio  float64 `koanf:"root_sample_ratio"`
	StrictActivation bool    `koanf:"strict_activation"`
	DisableBaggage   bool    `koanf:"disable_baggage"`
	MaxBuffer        int     `koanf:"max_buffer"`

	// SampleRatio 新 trace 的采样比例；0 表示不设置（使用 ParentBased(AlwaysSample)）。
	SampleRatio float64 `koanf:"sample_ratio"`
}

// Options 将 Config 转换为 New 的选项。
func (c Config) Options() ([]Option, error) {
	emit, err := xtrace.ParseEmit(c.Emit)
	if err != nil {
		return nil, err
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.SampleRatio)
	}

	opts := []Option{
		WithEmit(emit),
		WithRootSampled(c.RootSampled),
		WithStrictActivation(c.StrictActivation),
		WithBaggage(!c.DisableBaggage),
		WithMaxBuffer(c.MaxBuffer),
	}
	if c.ServiceName != "" {
		opts = append(opts, WithServiceName(c.ServiceName))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, WithHeaders(c.Headers...))
	}
	if c.LegacyHeaders {
		opts = append(opts, WithLegacyHeaders())
	}
	if len(c.Rename) > 0 {
		opts = append(opts, WithRename(c.Rename))
	}
	if c.RootSampleRatio > 0 {
		s, err := xsampling.NewRatioSampler(c.RootSampleRatio)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRootSampler(s))
	}
	if c.SampleRatio > 0 {
		ratio := c.SampleRatio
		opts = append(opts, WithProviderConfig(func(b *ProviderBuilder) {
			b.SetSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)))
		}))
	}
	return opts, nil
}
