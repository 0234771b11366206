package xlog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omeyang/xtracing/pkg/context/xctx"
)

// ErrNilHandler NewEnrichHandler 的 base 为 nil
var ErrNilHandler = errors.New("xlog: base handler is nil")

// EnrichHandler 在 Handle 时从 context 注入 trace_id、span_id、parent_span_id、
// request_id、trace_flags。字段缺失时跳过。
//
// 对 logger 调用 WithGroup 后，注入字段会被归入该分组，这是 slog handler 链的固有行为。
type EnrichHandler struct {
	base slog.Handler
}

// NewEnrichHandler 包装 base handler。
func NewEnrichHandler(base slog.Handler) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	return &EnrichHandler{base: base}, nil
}

func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle 按 slog 契约先 Clone record 再追加属性。
func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf [5]slog.Attr
	if attrs := xctx.AppendTraceAttrs(buf[:0], ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.base.Handle(ctx, r)
}

func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs)}
}

func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name)}
}
