package xbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xtracing/pkg/observability/xlog"
)

// ErrOpen 熔断器打开或半开状态下探测名额已满，请求未发出。
var ErrOpen = errors.New("xbreaker: circuit open")

// Settings 熔断配置，可直接从 xconf 反序列化。零值字段使用默认值。
type Settings struct {
	Name string `koanf:"name"`

	// ConsecutiveFailures 连续失败多少次后打开，默认 5。
	ConsecutiveFailures uint32 `koanf:"consecutive_failures"`

	// Timeout 打开后多久进入半开，默认 30s。
	Timeout time.Duration `koanf:"timeout"`

	// Interval 关闭状态下清零计数的周期，0 表示不清零。
	Interval time.Duration `koanf:"interval"`

	// MaxRequests 半开状态允许的探测请求数，默认 1。
	MaxRequests uint32 `koanf:"max_requests"`
}

func (s Settings) withDefaults() Settings {
	if s.Name == "" {
		s.Name = "upstream"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	return s
}

// StatusError 上游返回 5xx，计为一次失败。
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("xbreaker: upstream status %d", e.Code) }

// Transport 以熔断器保护的 http.RoundTripper。
//
// 网络错误与 5xx 响应计为失败；调用方主动取消不计入。
// 5xx 响应仍原样返回给调用方。
type Transport struct {
	base http.RoundTripper
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

// NewTransport 创建 Transport，base 为 nil 时使用 http.DefaultTransport。
func NewTransport(base http.RoundTripper, s Settings) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	s = s.withDefaults()
	threshold := s.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			xlog.Warn(context.Background(), "xbreaker: state changed",
				slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Transport{base: base, cb: cb}
}

// RoundTrip 实现 http.RoundTripper。
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.cb.Execute(func() (*http.Response, error) {
		resp, err := t.base.RoundTrip(req)
		if err == nil && resp.StatusCode >= http.StatusInternalServerError {
			return resp, &StatusError{Code: resp.StatusCode}
		}
		return resp, err
	})

	var se *StatusError
	switch {
	case errors.As(err, &se):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		// 未交给 base，由这里负责关闭请求体
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, t.cb.Name(), err)
	}
	return resp, err
}

// State 返回当前状态：closed、half-open 或 open。
func (t *Transport) State() string { return t.cb.State().String() }

// ConsecutiveFailures 返回当前连续失败次数。
func (t *Transport) ConsecutiveFailures() uint32 { return t.cb.Counts().ConsecutiveFailures }
