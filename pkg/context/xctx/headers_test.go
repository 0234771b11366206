package xctx_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xtracing/pkg/context/xctx"
)

func TestHeaders(t *testing.T) {
	src := map[string]string{"x-request-id": "r1", "X-B3-TraceId": "abc"}
	h := xctx.NewHeaders(src)

	// 快照与源 map 解耦
	src["x-request-id"] = "changed"

	v, ok := h.Get("X-REQUEST-ID")
	require.True(t, ok)
	assert.Equal(t, "r1", v)

	_, ok = h.Get("x-missing")
	assert.False(t, ok)

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, []string{"X-B3-Traceid", "X-Request-Id"}, h.Names())

	var visited []string
	h.Range(func(name, _ string) bool {
		visited = append(visited, name)
		return false
	})
	assert.Equal(t, []string{"X-B3-Traceid"}, visited)
}

func TestHeadersZeroValue(t *testing.T) {
	var h xctx.Headers
	_, ok := h.Get("x-request-id")
	assert.False(t, ok)
	assert.Zero(t, h.Len())
	assert.Empty(t, h.Names())
	assert.Zero(t, xctx.NewHeaders(nil).Len())
}

func TestCapturedHeaders(t *testing.T) {
	assert.Zero(t, xctx.CapturedHeaders(context.Background()).Len())

	ctx, err := xctx.WithHeaders(context.Background(), xctx.NewHeaders(map[string]string{"x-request-id": "r1"}))
	require.NoError(t, err)
	v, _ := xctx.CapturedHeaders(ctx).Get("x-request-id")
	assert.Equal(t, "r1", v)

	var nilCtx context.Context
	_, err = xctx.WithHeaders(nilCtx, xctx.Headers{})
	assert.ErrorIs(t, err, xctx.ErrNilContext)
	assert.Zero(t, xctx.CapturedHeaders(nilCtx).Len())
}

func TestTraceAttrs(t *testing.T) {
	assert.Nil(t, xctx.TraceAttrs(context.Background()))

	ctx, _ := xctx.WithTrace(context.Background(), xctx.Trace{
		TraceID:      "t1",
		SpanID:       "s1",
		ParentSpanID: "p1",
		Scheme:       xctx.SchemeB3,
	})
	attrs := xctx.TraceAttrs(ctx)
	require.Len(t, attrs, 3)
	assert.Equal(t, slog.String(xctx.KeyTraceID, "t1"), attrs[0])
	assert.Equal(t, slog.String(xctx.KeySpanID, "s1"), attrs[1])
	assert.Equal(t, slog.String(xctx.KeyParentSpanID, "p1"), attrs[2])

	var nilCtx context.Context
	assert.Empty(t, xctx.AppendTraceAttrs(nil, nilCtx))
}
