// Package xmetricstest 提供读取 sdk/metric ManualReader 的测试辅助。
package xmetricstest

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Sums 采集一次并返回 指标名 → 属性集 → 累计值（仅 int64 Sum）。
func Sums(t testing.TB, reader *sdkmetric.ManualReader) map[string]map[attribute.Set]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	out := make(map[string]map[attribute.Set]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			points := make(map[attribute.Set]int64, len(sum.DataPoints))
			for _, dp := range sum.DataPoints {
				points[dp.Attributes] += dp.Value
			}
			out[m.Name] = points
		}
	}
	return out
}

// NewReader 创建 ManualReader 与绑定的 MeterProvider，测试结束时自动关闭。
func NewReader(t testing.TB) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}
