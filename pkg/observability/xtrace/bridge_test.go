package xtrace_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/omeyang/xtracing/pkg/context/xctx"
	"github.com/omeyang/xtracing/pkg/observability/xmetrics"
	"github.com/omeyang/xtracing/pkg/observability/xmetrics/xmetricstest"
	"github.com/omeyang/xtracing/pkg/observability/xsampling"
	"github.com/omeyang/xtracing/pkg/observability/xtrace"
)

const (
	testTraceID = "0af7651916cd43dd8448eb211c80319c"
	testSpanID  = "b7ad6b7169203331"
	testParent  = "00f067aa0ba902b7"
	testTP      = "00-" + testTraceID + "-" + testSpanID + "-01"
)

// newBridge 创建绑定 SpanRecorder 的 Bridge
func newBridge(t *testing.T, opts ...xtrace.Option) (*xtrace.Bridge, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithSpanProcessor(sr),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	b, err := xtrace.NewBridge(append([]xtrace.Option{xtrace.WithTracerProvider(tp)}, opts...)...)
	require.NoError(t, err)
	return b, sr
}

func header(kvs ...string) http.Header {
	h := make(http.Header)
	for i := 0; i+1 < len(kvs); i += 2 {
		h.Set(kvs[i], kvs[i+1])
	}
	return h
}

func carrierOf(h http.Header) propagation.TextMapCarrier { return propagation.HeaderCarrier(h) }

// =============================================================================
// 构造
// =============================================================================

func TestNewBridge(t *testing.T) {
	t.Run("默认配置", func(t *testing.T) {
		b, err := xtrace.NewBridge()
		require.NoError(t, err)
		assert.Equal(t, xtrace.EmitBoth, b.Emit())
		assert.NotNil(t, b.TracerProvider())
		assert.NoError(t, b.Shutdown(context.Background()))
	})

	t.Run("未启用任何格式", func(t *testing.T) {
		_, err := xtrace.NewBridge(xtrace.WithEmit(0))
		assert.ErrorIs(t, err, xtrace.ErrNoEmitScheme)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := xtrace.NewBridge(xtrace.WithTracerProvider(nil))
		assert.ErrorIs(t, err, xtrace.ErrNilTracerProvider)
	})

	t.Run("外部 provider 不由 Bridge 关闭", func(t *testing.T) {
		b, _ := newBridge(t)
		assert.NoError(t, b.Shutdown(context.Background()))
	})
}

func TestParseEmit(t *testing.T) {
	tests := []struct {
		in      string
		want    xtrace.Emit
		wantErr bool
	}{
		{"", xtrace.EmitBoth, false},
		{"both", xtrace.EmitBoth, false},
		{"W3C", xtrace.EmitW3C, false},
		{"tracecontext", xtrace.EmitW3C, false},
		{" b3 ", xtrace.EmitB3, false},
		{"zipkin", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := xtrace.ParseEmit(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, xtrace.ErrUnknownEmit)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmitString(t *testing.T) {
	assert.Equal(t, "w3c", xtrace.EmitW3C.String())
	assert.Equal(t, "b3", xtrace.EmitB3.String())
	assert.Equal(t, "both", xtrace.EmitBoth.String())
	assert.True(t, xtrace.EmitBoth.Has(xtrace.EmitB3))
	assert.False(t, xtrace.EmitW3C.Has(xtrace.EmitB3))
}

// =============================================================================
// 入站解码
// =============================================================================

func TestExtract(t *testing.T) {
	b, _ := newBridge(t)

	tests := []struct {
		name       string
		header     http.Header
		wantScheme xtrace.Scheme
		wantTrace  string
		wantSpan   string
		wantParent string
		wantSample bool
	}{
		{
			name:       "W3C",
			header:     header("traceparent", testTP),
			wantScheme: xtrace.SchemeW3C,
			wantTrace:  testTraceID,
			wantSpan:   testSpanID,
			wantSample: true,
		},
		{
			name:       "W3C 未采样",
			header:     header("traceparent", "00-"+testTraceID+"-"+testSpanID+"-00"),
			wantScheme: xtrace.SchemeW3C,
			wantTrace:  testTraceID,
			wantSpan:   testSpanID,
		},
		{
			name:       "W3C 大写十六进制",
			header:     header("Traceparent", strings.ToUpper(testTP)),
			wantScheme: xtrace.SchemeW3C,
			wantTrace:  testTraceID,
			wantSpan:   testSpanID,
			wantSample: true,
		},
		{
			name: "B3 多头部",
			header: header(
				"x-b3-traceid", testTraceID,
				"x-b3-spanid", testSpanID,
				"x-b3-parentspanid", testParent,
				"x-b3-sampled", "1",
			),
			wantScheme: xtrace.SchemeB3,
			wantTrace:  testTraceID,
			wantSpan:   testSpanID,
			wantParent: testParent,
			wantSample: true,
		},
		{
			name: "B3 头部名与值大小写混合",
			header: header(
				"X-B3-TraceId", strings.ToUpper(testTraceID),
				"X-B3-SpanId", strings.ToUpper(testSpanID),
				"X-B3-Sampled", "0",
			),
			wantScheme: xtrace.SchemeB3,
			wantTrace:  testTraceID,
			wantSpan:   testSpanID,
		},
		{
			name: "W3C 优先且不合并 B3",
			header: header(
				"traceparent", testTP,
				"x-b3-traceid", "11111111111111111111111111111111",
				"x-b3-spanid", "2222222222222222",
				"x-b3-parentspanid", testParent,
			),
			wantScheme: xtrace.SchemeW3C,
			wantTrace:  testTraceID,
			wantSpan:   testSpanID,
			wantSample: true,
		},
		{
			name: "非法 traceparent 回退到 B3",
			header: header(
				"traceparent", "00-xyz-"+testSpanID+"-01",
				"x-b3-traceid", testTraceID,
				"x-b3-spanid", testSpanID,
			),
			wantScheme: xtrace.SchemeB3,
			wantTrace:  testTraceID,
			wantSpan:   testSpanID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := b.Extract(context.Background(), propagation.HeaderCarrier(tt.header))
			require.True(t, ex.Valid())
			assert.Equal(t, tt.wantScheme, ex.Scheme)
			assert.Equal(t, tt.wantTrace, ex.SpanContext.TraceID().String())
			assert.Equal(t, tt.wantSpan, ex.SpanContext.SpanID().String())
			assert.Equal(t, tt.wantParent, ex.ParentSpanID)
			assert.Equal(t, tt.wantSample, ex.SpanContext.IsSampled())
			assert.True(t, ex.SpanContext.IsRemote())
		})
	}
}

func TestExtractInvalid(t *testing.T) {
	b, _ := newBridge(t)

	tests := []struct {
		name   string
		header http.Header
	}{
		{"空", http.Header{}},
		{"traceparent 长度错误", header("traceparent", "00-abc-def-01")},
		{"traceparent 全零 trace ID", header("traceparent", "00-00000000000000000000000000000000-"+testSpanID+"-01")},
		{"B3 缺少 span ID", header("x-b3-traceid", testTraceID)},
		{"B3 非十六进制", header("x-b3-traceid", "zzzz", "x-b3-spanid", testSpanID)},
		{"仅 request id", header("x-request-id", "req-1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := b.Extract(context.Background(), propagation.HeaderCarrier(tt.header))
			assert.False(t, ex.Valid())
		})
	}
}

// 合法 traceparent 的 trace ID / span ID 必须等于固定偏移处的子串
func TestExtractTraceparentOffsets(t *testing.T) {
	b, _ := newBridge(t)
	for range 50 {
		tid, sid := xctx.GenerateTraceID(), xctx.GenerateSpanID()
		tp := "00-" + tid + "-" + sid + "-01"
		ex := b.Extract(context.Background(), propagation.HeaderCarrier(header("traceparent", tp)))
		require.True(t, ex.Valid())
		assert.Equal(t, tp[3:35], ex.SpanContext.TraceID().String())
		assert.Equal(t, tp[36:52], ex.SpanContext.SpanID().String())
	}
}

// =============================================================================
// 激活
// =============================================================================

func TestActivateRoot(t *testing.T) {
	b, _ := newBridge(t)

	ctx1 := b.ExtractAndActivate(context.Background(), propagation.HeaderCarrier(http.Header{}))
	ctx2 := b.ExtractAndActivate(context.Background(), propagation.HeaderCarrier(http.Header{}))

	info1, info2 := xtrace.TraceInfoFromContext(ctx1), xtrace.TraceInfoFromContext(ctx2)
	assert.Regexp(t, "^[0-9a-f]{32}$", info1.TraceID)
	assert.Regexp(t, "^[0-9a-f]{16}$", info1.SpanID)
	assert.NotEqual(t, info1.TraceID, info2.TraceID)
	assert.Equal(t, xtrace.SchemeRoot, info1.Scheme)
	assert.False(t, info1.Sampled)
	assert.Empty(t, info1.ParentSpanID)
	assert.NotEmpty(t, info1.RequestID)
	assert.True(t, xtrace.Active(ctx1))
}

func TestActivateRootSampled(t *testing.T) {
	b, _ := newBridge(t, xtrace.WithRootSampled(true))
	ctx := b.ExtractAndActivate(context.Background(), propagation.HeaderCarrier(http.Header{}))
	assert.True(t, xtrace.Sampled(ctx))
	assert.Equal(t, "01", xtrace.TraceFlags(ctx))
}

type recordingSampler struct{ seen []string }

func (s *recordingSampler) ShouldSample(traceID string) bool {
	s.seen = append(s.seen, traceID)
	return true
}

func TestActivateRootSampler(t *testing.T) {
	s := &recordingSampler{}
	b, _ := newBridge(t, xtrace.WithRootSampler(s))
	ctx := b.ExtractAndActivate(context.Background(), propagation.HeaderCarrier(http.Header{}))
	assert.True(t, xtrace.Sampled(ctx))
	assert.Equal(t, []string{xtrace.TraceID(ctx)}, s.seen)

	// 继承上游上下文时不重新决策
	b.ExtractAndActivate(context.Background(), propagation.HeaderCarrier(header("traceparent", testTP)))
	assert.Len(t, s.seen, 1)

	ratio, err := xsampling.NewRatioSampler(0)
	require.NoError(t, err)
	b, _ = newBridge(t, xtrace.WithRootSampled(true), xtrace.WithRootSampler(ratio))
	ctx = b.ExtractAndActivate(context.Background(), propagation.HeaderCarrier(http.Header{}))
	assert.False(t, xtrace.Sampled(ctx))
}

func TestActivateKeepsRequestID(t *testing.T) {
	b, _ := newBridge(t)
	ctx := b.ExtractAndActivate(context.Background(),
		propagation.HeaderCarrier(header("traceparent", testTP, "X-Request-Id", "req-42")))
	assert.Equal(t, "req-42", xtrace.RequestID(ctx))
	assert.Equal(t, testTraceID, xtrace.TraceID(ctx))
	assert.Equal(t, testSpanID, xtrace.SpanID(ctx))
	assert.Equal(t, xtrace.SchemeW3C, xtrace.SchemeFrom(ctx))
}

func TestActivateMetrics(t *testing.T) {
	reader, mp := xmetricstest.NewReader(t)
	rec, err := xmetrics.New(xmetrics.WithMeterProvider(mp))
	require.NoError(t, err)
	b, _ := newBridge(t, xtrace.WithMetrics(rec))

	ctx := context.Background()
	b.ExtractAndActivate(ctx, propagation.HeaderCarrier(header("traceparent", testTP)))
	b.ExtractAndActivate(ctx, propagation.HeaderCarrier(header("traceparent", "garbage")))

	sums := xmetricstest.Sums(t, reader)
	assert.Equal(t, int64(1), sums[xmetrics.MetricExtractTotal][attribute.NewSet(xmetrics.AttrScheme.String("w3c"))])
	assert.Equal(t, int64(1), sums[xmetrics.MetricExtractTotal][attribute.NewSet(xmetrics.AttrScheme.String("root"))])
	assert.Equal(t, int64(1), sums[xmetrics.MetricExtractMalformed][attribute.NewSet(xmetrics.AttrHeader.String("traceparent"))])
}

// 只有采样位或 flags 的请求视为没有 B3 上下文，不计入格式错误
func TestExtractSamplingOnlyB3(t *testing.T) {
	reader, mp := xmetricstest.NewReader(t)
	rec, err := xmetrics.New(xmetrics.WithMeterProvider(mp))
	require.NoError(t, err)
	b, _ := newBridge(t, xtrace.WithMetrics(rec))

	ctx := context.Background()
	for _, h := range []http.Header{
		header("x-b3-sampled", "1"),
		header("x-b3-flags", "1"),
		header("x-b3-sampled", "0", "x-b3-parentspanid", testSpanID),
	} {
		ex := b.Extract(ctx, propagation.HeaderCarrier(h))
		assert.False(t, ex.Valid())
		assert.Equal(t, xtrace.Scheme(""), ex.Scheme)
	}
	b.Extract(ctx, propagation.HeaderCarrier(header("x-b3-traceid", testTraceID)))

	sums := xmetricstest.Sums(t, reader)
	assert.Equal(t, int64(1), sums[xmetrics.MetricExtractMalformed][attribute.NewSet(xmetrics.AttrHeader.String("x-b3-traceid"))])
}

// =============================================================================
// 中间件
// =============================================================================

func TestMiddleware(t *testing.T) {
	b, _ := newBridge(t)

	var got xtrace.TraceInfo
	h := b.Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = xtrace.TraceInfoFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-B3-TraceId", testTraceID)
	req.Header.Set("X-B3-SpanId", testSpanID)
	req.Header.Set("X-B3-ParentSpanId", testParent)
	req.Header.Set("X-B3-Sampled", "1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, xtrace.TraceInfo{
		TraceID:      testTraceID,
		SpanID:       testSpanID,
		ParentSpanID: testParent,
		RequestID:    got.RequestID,
		Sampled:      true,
		Scheme:       xtrace.SchemeB3,
	}, got)
	assert.NotEmpty(t, got.RequestID)
}

func TestAccessorsWithoutActivation(t *testing.T) {
	ctx := context.Background()
	assert.True(t, xtrace.TraceInfoFromContext(ctx).IsEmpty())
	assert.Empty(t, xtrace.TraceID(ctx))
	assert.Empty(t, xtrace.SpanID(ctx))
	assert.Empty(t, xtrace.ParentSpanID(ctx))
	assert.False(t, xtrace.Sampled(ctx))
	assert.False(t, xtrace.Active(ctx))
}
