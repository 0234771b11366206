package xctx

import (
	"context"
	"net/textproto"
	"sort"
)

const keyHeaders = contextKey("xctx:headers")

// Headers 请求入口捕获的头部快照。
//
// 键为规范化（textproto.CanonicalMIMEHeaderKey）后的头部名，每个名称只保留一个值。
// 创建后只读，可在并发的出站调用之间共享。
type Headers struct {
	m map[string]string
}

// NewHeaders 复制 m 构建只读快照，键会被规范化。
// 规范化后重名的键以字典序靠后的原始键为准，调用方不应依赖此行为。
func NewHeaders(m map[string]string) Headers {
	if len(m) == 0 {
		return Headers{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cp := make(map[string]string, len(m))
	for _, k := range keys {
		cp[textproto.CanonicalMIMEHeaderKey(k)] = m[k]
	}
	return Headers{m: cp}
}

// Get 返回名称对应的值，名称大小写不敏感。
func (h Headers) Get(name string) (string, bool) {
	if h.m == nil {
		return "", false
	}
	v, ok := h.m[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// Len 返回捕获的头部数量。
func (h Headers) Len() int { return len(h.m) }

// Names 返回按字典序排列的规范化头部名。
func (h Headers) Names() []string {
	names := make([]string, 0, len(h.m))
	for k := range h.m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Range 按 Names 的顺序遍历，fn 返回 false 时停止。
func (h Headers) Range(fn func(name, value string) bool) {
	for _, name := range h.Names() {
		if !fn(name, h.m[name]) {
			return
		}
	}
}

// WithHeaders 将捕获的头部快照注入 context。
func WithHeaders(ctx context.Context, h Headers) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyHeaders, h), nil
}

// CapturedHeaders 从 context 读取头部快照，未捕获时返回空快照。
func CapturedHeaders(ctx context.Context) Headers {
	if ctx == nil {
		return Headers{}
	}
	h, _ := ctx.Value(keyHeaders).(Headers)
	return h
}
