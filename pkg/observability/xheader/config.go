package xheader

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"golang.org/x/net/http/httpguts"

	"github.com/omeyang/xtracing/pkg/observability/xmetrics"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrInvalidHeaderName 头部名称不符合 RFC 7230 token 规则。
	ErrInvalidHeaderName = errors.New("xheader: invalid header name")

	// ErrRenameNotAllowed 重命名的源头部不在白名单中。
	ErrRenameNotAllowed = errors.New("xheader: rename source not in allow-list")
)

// =============================================================================
// 白名单
// =============================================================================

// DefaultHeaders 默认白名单。
var DefaultHeaders = []string{"x-request-id"}

// LegacyHeaders 旧版白名单在默认白名单之外额外捕获的头部。
//
// 旧版通过原样转发 B3 头部维持链路，新代码应使用 xtrace.Bridge 生成子 span。
var LegacyHeaders = []string{
	"x-b3-traceid",
	"x-b3-spanid",
	"x-b3-parentspanid",
	"x-b3-sampled",
	"x-b3-flags",
	"x-ot-span-context",
}

// =============================================================================
// Config
// =============================================================================

// ConfigOption Config 选项
type ConfigOption func(*options)

type options struct {
	headers []string
	legacy  bool
	rename  map[string]string
	metrics *xmetrics.Recorder
}

// WithHeaders 在默认白名单之外追加头部名称。
func WithHeaders(names ...string) ConfigOption {
	return func(o *options) { o.headers = append(o.headers, names...) }
}

// WithLegacyHeaders 追加 LegacyHeaders。
func WithLegacyHeaders() ConfigOption {
	return func(o *options) { o.legacy = true }
}

// WithRename 设置出站重命名：key 为白名单中的入站名称，value 为出站名称。
// 多次调用会合并。
func WithRename(m map[string]string) ConfigOption {
	return func(o *options) {
		if o.rename == nil {
			o.rename = make(map[string]string, len(m))
		}
		for k, v := range m {
			o.rename[k] = v
		}
	}
}

// WithMetrics 设置指标记录器。
func WithMetrics(r *xmetrics.Recorder) ConfigOption {
	return func(o *options) { o.metrics = r }
}

// Config 头部传播配置：白名单与重命名规则。
//
// 构建后不可变，可在任意多个 goroutine 间共享。
type Config struct {
	names   []string          // 规范化名称，已排序去重
	rename  map[string]string // 规范化入站名称 → 出站名称
	metrics *xmetrics.Recorder
}

// NewConfig 创建 Config。
func NewConfig(opts ...ConfigOption) (*Config, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	all := slices.Clone(DefaultHeaders)
	if o.legacy {
		all = append(all, LegacyHeaders...)
	}
	all = append(all, o.headers...)

	names := make([]string, 0, len(all))
	for _, n := range all {
		if !httpguts.ValidHeaderFieldName(n) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeaderName, n)
		}
		names = append(names, http.CanonicalHeaderKey(n))
	}
	slices.Sort(names)
	names = slices.Compact(names)

	rename := make(map[string]string, len(o.rename))
	for from, to := range o.rename {
		key := http.CanonicalHeaderKey(from)
		if _, found := slices.BinarySearch(names, key); !found {
			return nil, fmt.Errorf("%w: %q", ErrRenameNotAllowed, from)
		}
		if !httpguts.ValidHeaderFieldName(to) {
			return nil, fmt.Errorf("%w: rename target %q", ErrInvalidHeaderName, to)
		}
		rename[key] = to
	}

	return &Config{names: names, rename: rename, metrics: o.metrics}, nil
}

// Names 返回白名单（规范化名称，已排序）。
func (c *Config) Names() []string { return slices.Clone(c.names) }

// OutboundName 返回 name 在出站请求上使用的名称。
func (c *Config) OutboundName(name string) string {
	if to, ok := c.rename[http.CanonicalHeaderKey(name)]; ok {
		return to
	}
	return name
}
