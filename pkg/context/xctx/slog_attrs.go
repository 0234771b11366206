package xctx

import (
	"context"
	"log/slog"
)

// AppendTraceAttrs 将 context 中非空的追踪字段追加到 attrs。
// 调用方传入预分配切片以避免热路径分配。
func AppendTraceAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	pairs := [...]struct {
		key string
		ck  contextKey
	}{
		{KeyTraceID, keyTraceID},
		{KeySpanID, keySpanID},
		{KeyParentSpanID, keyParentSpanID},
		{KeyRequestID, keyRequestID},
		{KeyTraceFlags, keyTraceFlags},
	}
	for _, p := range pairs {
		if v := stringValue(ctx, p.ck); v != "" {
			attrs = append(attrs, slog.String(p.key, v))
		}
	}
	return attrs
}

// TraceAttrs 返回追踪字段的 slog 属性，全部为空时返回 nil。
func TraceAttrs(ctx context.Context) []slog.Attr {
	attrs := AppendTraceAttrs(make([]slog.Attr, 0, traceFieldCount), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
