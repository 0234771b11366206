package xmirror

import (
	"net/http"
	"strings"

	"github.com/omeyang/xtracing/pkg/observability/xlog"
	"github.com/omeyang/xtracing/pkg/observability/xmetrics"
)

// 镜像的 B3 头部
const (
	HeaderTraceID      = "x-b3-traceid"
	HeaderSpanID       = "x-b3-spanid"
	HeaderParentSpanID = "x-b3-parentspanid"
)

// =============================================================================
// 选项
// =============================================================================

// Option Mirror 选项
type Option func(*Mirror)

// WithMaxBuffer 设置响应缓冲上限（字节），0 表示不限制。
//
// 超过上限时立即镜像头部并刷出已缓冲内容，之后的写入直接透传。
func WithMaxBuffer(n int) Option {
	return func(m *Mirror) {
		if n >= 0 {
			m.maxBuffer = n
		}
	}
}

// WithMetrics 设置指标记录器。
func WithMetrics(r *xmetrics.Recorder) Option {
	return func(m *Mirror) { m.metrics = r }
}

// =============================================================================
// Mirror
// =============================================================================

// Mirror 响应镜像中间件：把入站 B3 标识写回响应头部。
//
// 下游处理期间缓冲响应，结束后（包括 panic）补写缺失的 B3 头部再一次性刷出。
// 下游已设置的同名头部保持不变。
type Mirror struct {
	maxBuffer int
	metrics   *xmetrics.Recorder
}

// New 创建 Mirror。
func New(opts ...Option) *Mirror {
	m := &Mirror{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Middleware 返回 HTTP 中间件。
//
// 下游 panic 时仍会镜像并刷出响应，随后 panic 继续向上传播。
func (m *Mirror) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := m.Begin(w, r)
			defer func() {
				if err := s.Finish(); err != nil {
					xlog.Warn(r.Context(), "xmirror: flush response failed", xlog.Err(err))
				}
			}()
			next.ServeHTTP(s.Writer(), r)
		})
	}
}

// =============================================================================
// 标识提取
// =============================================================================

// Identifiers 从入站 B3 头部提取的标识，已转为小写，缺失时为空字符串。
type Identifiers struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// ExtractIdentifiers 读取 x-b3-traceid、x-b3-spanid、x-b3-parentspanid。
//
// 名称大小写不敏感；任何读取失败都按空字符串处理。
func ExtractIdentifiers(h http.Header) Identifiers {
	return Identifiers{
		TraceID:      lookup(h, HeaderTraceID),
		SpanID:       lookup(h, HeaderSpanID),
		ParentSpanID: lookup(h, HeaderParentSpanID),
	}
}

func lookup(h http.Header, name string) (v string) {
	defer func() {
		if recover() != nil {
			v = ""
		}
	}()
	if v = h.Get(name); v == "" {
		for k, vals := range h {
			if len(vals) > 0 && strings.EqualFold(k, name) {
				v = vals[0]
				break
			}
		}
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// pairs 按镜像顺序返回 头部名 → 值。
func (ids Identifiers) pairs() [3][2]string {
	return [3][2]string{
		{HeaderSpanID, ids.SpanID},
		{HeaderTraceID, ids.TraceID},
		{HeaderParentSpanID, ids.ParentSpanID},
	}
}
