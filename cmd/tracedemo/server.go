package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xtracing/pkg/observability/xlog"
	"github.com/omeyang/xtracing/pkg/observability/xtrace"
	"github.com/omeyang/xtracing/pkg/resilience/xbreaker"
	"github.com/omeyang/xtracing/pkg/resilience/xretry"
	"github.com/omeyang/xtracing/pkg/web/xecho"
	"github.com/omeyang/xtracing/pkg/xtracing"
)

// activityInfo 当前请求的追踪上下文
type activityInfo struct {
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	Scheme       string `json:"scheme"`
	Sampled      bool   `json:"sampled"`
}

// injection 出站调用时上游实际收到的请求头部
type injection struct {
	RequestHeaders []map[string]string `json:"request_headers"`
	Activity       activityInfo        `json:"activity"`
}

func activityFrom(ctx context.Context) activityInfo {
	info := xtrace.TraceInfoFromContext(ctx)
	return activityInfo{
		TraceID:      info.TraceID,
		SpanID:       info.SpanID,
		ParentSpanID: info.ParentSpanID,
		RequestID:    info.RequestID,
		Scheme:       string(info.Scheme),
		Sampled:      info.Sampled,
	}
}

type server struct {
	client   *http.Client
	breaker  *xbreaker.Transport
	retry    xretry.Policy
	upstream string
	fanOut   int
}

// newServer 注册演示路由，所有路由都经过追踪中间件。
//
// 出站调用链：追踪注入 → 熔断 → 网络；重试在最外层，每次尝试都是独立的出站 span。
func newServer(tr *xtracing.Tracing, cfg serverConfig) *echo.Echo {
	breaker := xbreaker.NewTransport(nil, cfg.Breaker)
	client := tr.Client(breaker)
	client.Timeout = cfg.ClientTimeout
	s := &server{
		client:   client,
		breaker:  breaker,
		retry:    cfg.Retry,
		upstream: strings.TrimRight(cfg.Upstream, "/"),
		fanOut:   max(cfg.FanOut, 1),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(xecho.Middleware(tr))

	e.GET("/health", s.health)
	e.GET("/activity", s.activity)
	e.GET("/echo-headers", s.echoHeaders)
	e.GET("/http-request", s.httpRequest)
	return e
}

func (s *server) health(c echo.Context) error {
	return c.String(http.StatusOK, "Healthy")
}

func (s *server) activity(c echo.Context) error {
	return c.JSON(http.StatusOK, activityFrom(c.Request().Context()))
}

// echoHeaders 以小写名称返回入站头部，多值以逗号拼接。
func (s *server) echoHeaders(c echo.Context) error {
	h := c.Request().Header
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[strings.ToLower(name)] = strings.Join(values, ",")
	}
	return c.JSON(http.StatusOK, out)
}

// httpRequest 并发向上游 /echo-headers 发起 fanOut 次调用，返回上游收到的头部。
//
// 未配置上游时调用自身。
func (s *server) httpRequest(c echo.Context) error {
	ctx := c.Request().Context()
	target := s.upstream
	if target == "" {
		target = "http://" + c.Request().Host
	}
	target += "/echo-headers"

	results := make([]map[string]string, s.fanOut)
	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		g.Go(func() error {
			h, err := s.fetchHeaders(gctx, target)
			if err != nil {
				return err
			}
			results[i] = h
			return nil
		})
	}
	start := time.Now()
	if err := g.Wait(); err != nil {
		xlog.Warn(ctx, "tracedemo: upstream call failed", xlog.Err(err), slog.String("breaker", s.breaker.State()))
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	xlog.Debug(ctx, "tracedemo: upstream calls done", xlog.Duration(time.Since(start)))

	return c.JSON(http.StatusOK, injection{
		RequestHeaders: results,
		Activity:       activityFrom(ctx),
	})
}

// fetchHeaders 4xx 与熔断拒绝不重试。
func (s *server) fetchHeaders(ctx context.Context, url string) (map[string]string, error) {
	return xretry.Do(ctx, s.retry, func(ctx context.Context) (map[string]string, error) {
		h, err := s.fetchOnce(ctx, url)
		if errors.Is(err, xbreaker.ErrOpen) {
			return nil, xretry.Permanent(err)
		}
		return h, err
	})
}

func (s *server) fetchOnce(ctx context.Context, url string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("upstream %s: status %d", url, resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError {
			return nil, xretry.Permanent(err)
		}
		return nil, err
	}
	var h map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("upstream %s: decode: %w", url, err)
	}
	return h, nil
}
