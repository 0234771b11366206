package xheader

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/omeyang/xtracing/pkg/context/xctx"
	"github.com/omeyang/xtracing/pkg/observability/xlog"
)

// =============================================================================
// 捕获
// =============================================================================

// Capture 读取白名单中每个头部的第一个值。
//
// 名称大小写不敏感；缺失的头部不产生条目。
func (c *Config) Capture(h http.Header) xctx.Headers {
	m := make(map[string]string, len(c.names))
	for _, name := range c.names {
		if v, ok := first(h, name); ok {
			m[name] = v
		}
	}
	return xctx.NewHeaders(m)
}

// first 返回 name 的第一个值。
// 直接构造的 http.Header 可能含非规范化 key，规范化查找失败时逐个比较。
func first(h http.Header, name string) (string, bool) {
	if vals := h[name]; len(vals) > 0 {
		return vals[0], true
	}
	for k, vals := range h {
		if len(vals) > 0 && strings.EqualFold(k, name) {
			return vals[0], true
		}
	}
	return "", false
}

// Middleware 在请求开始时捕获头部并存入请求 context。
func (c *Config) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// r.Context() 非 nil，WithHeaders 不会返回错误
			ctx, _ := xctx.WithHeaders(r.Context(), c.Capture(r.Header))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// =============================================================================
// 应用
// =============================================================================

// Apply 将捕获的头部写入出站请求头部，返回写入数量。
//
// 只写入本 Config 白名单内的头部，同一请求 context 可由多个 Config 分别转发；
// 空值跳过；出站请求上已存在的同名头部不覆盖；
// 出站请求已带 B3 采样决定时不转发 x-b3-flags（debug 隐含 sampled，二者不同时发送）；
// 名称或值不合法的条目跳过并记录 Debug 日志。
func (c *Config) Apply(ctx context.Context, captured xctx.Headers, out http.Header) int {
	sampled := len(out.Values(headerB3Sampled)) > 0 || len(out.Values(headerB3Single)) > 0
	n := 0
	captured.Range(func(name, value string) bool {
		if value == "" || !c.allows(name) {
			return true
		}
		if sampled && http.CanonicalHeaderKey(name) == headerB3Flags {
			return true
		}
		target := c.OutboundName(name)
		if len(out.Values(target)) > 0 {
			return true
		}
		if !httpguts.ValidHeaderFieldName(target) || !httpguts.ValidHeaderFieldValue(value) {
			xlog.Debug(ctx, "xheader: skip invalid captured header", xlog.Header(target))
			return true
		}
		out.Set(target, value)
		n++
		return true
	})
	c.metrics.Applied(ctx, n)
	return n
}

const (
	headerB3Sampled = "X-B3-Sampled"
	headerB3Flags   = "X-B3-Flags"
	headerB3Single  = "B3"
)

func (c *Config) allows(name string) bool {
	_, found := slices.BinarySearch(c.names, http.CanonicalHeaderKey(name))
	return found
}

// Transport 返回出站 RoundTripper：从请求 context 读取捕获的头部并写入请求。
//
// 原请求不被修改（克隆后写入）。base 为 nil 时使用 http.DefaultTransport。
func (c *Config) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{cfg: c, next: base}
}

type transport struct {
	cfg  *Config
	next http.RoundTripper
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	captured := xctx.CapturedHeaders(r.Context())
	if captured.Len() == 0 {
		return t.next.RoundTrip(r)
	}
	clone := r.Clone(r.Context())
	t.cfg.Apply(r.Context(), captured, clone.Header)
	return t.next.RoundTrip(clone)
}
