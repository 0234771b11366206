package xmetrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/omeyang/xtracing/pkg/observability/xmetrics"
	"github.com/omeyang/xtracing/pkg/observability/xmetrics/xmetricstest"
)

func newRecorder(t *testing.T) (*xmetrics.Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	r, err := xmetrics.New(xmetrics.WithMeterProvider(mp), xmetrics.WithInstrumentationName("test"))
	require.NoError(t, err)
	return r, reader
}

func TestRecorder(t *testing.T) {
	r, reader := newRecorder(t)
	ctx := context.Background()

	r.Extracted(ctx, "w3c")
	r.Extracted(ctx, "w3c")
	r.Extracted(ctx, "b3")
	r.Malformed(ctx, "traceparent")
	r.Applied(ctx, 3)
	r.Applied(ctx, 0)
	r.Mirrored(ctx, "x-b3-spanid")
	r.Flushed(ctx, false)

	got := xmetricstest.Sums(t, reader)
	assert.Equal(t, int64(2), got[xmetrics.MetricExtractTotal][attribute.NewSet(xmetrics.AttrScheme.String("w3c"))])
	assert.Equal(t, int64(1), got[xmetrics.MetricExtractTotal][attribute.NewSet(xmetrics.AttrScheme.String("b3"))])
	assert.Equal(t, int64(1), got[xmetrics.MetricExtractMalformed][attribute.NewSet(xmetrics.AttrHeader.String("traceparent"))])
	assert.Equal(t, int64(3), got[xmetrics.MetricHeadersApplied][*attribute.EmptySet()])
	assert.Equal(t, int64(1), got[xmetrics.MetricMirrorHeaders][attribute.NewSet(xmetrics.AttrHeader.String("x-b3-spanid"))])
	assert.Equal(t, int64(1), got[xmetrics.MetricMirrorFlush][attribute.NewSet(xmetrics.AttrEarly.Bool(false))])
}

func TestNilRecorder(t *testing.T) {
	var r *xmetrics.Recorder
	ctx := context.Background()
	assert.NotPanics(t, func() {
		r.Extracted(ctx, "root")
		r.Malformed(ctx, "traceparent")
		r.Applied(ctx, 1)
		r.Mirrored(ctx, "x-b3-traceid")
		r.Flushed(ctx, true)
	})
}

func TestNewDefaultProvider(t *testing.T) {
	r, err := xmetrics.New()
	require.NoError(t, err)
	assert.NotNil(t, r)
}
