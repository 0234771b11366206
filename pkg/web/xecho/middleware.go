// Package xecho 将追踪传播中间件适配到 Echo v4。
//
// Bridge 与 Capture 直接复用 net/http 中间件；Mirror 替换 echo.Response 的底层 Writer，
// 并在返回前交给 Echo 的错误处理器生成错误响应，保证错误响应同样带有镜像头部。
package xecho

import (
	"github.com/labstack/echo/v4"

	"github.com/omeyang/xtracing/pkg/observability/xheader"
	"github.com/omeyang/xtracing/pkg/observability/xlog"
	"github.com/omeyang/xtracing/pkg/observability/xmirror"
	"github.com/omeyang/xtracing/pkg/observability/xtrace"
	"github.com/omeyang/xtracing/pkg/xtracing"
)

// Middleware 按 mirror → bridge → capture 顺序组合 Tracing 的全部中间件。
func Middleware(t *xtracing.Tracing) echo.MiddlewareFunc {
	mirror, bridge, capture := Mirror(t.Mirror()), Bridge(t.Bridge()), Capture(t.Headers())
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return mirror(bridge(capture(next)))
	}
}

// Bridge 激活入站追踪上下文。
func Bridge(b *xtrace.Bridge) echo.MiddlewareFunc {
	return echo.WrapMiddleware(b.Middleware())
}

// Capture 捕获白名单头部到请求 context。
func Capture(cfg *xheader.Config) echo.MiddlewareFunc {
	return echo.WrapMiddleware(cfg.Middleware())
}

// Mirror 把入站 B3 标识镜像到响应头部。
//
// next 返回错误时先调用 c.Error 生成错误响应再镜像刷出，错误仍原样返回；
// Echo 的默认错误处理器检测到响应已提交后不会重复写入。
func Mirror(m *xmirror.Mirror) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response()
			orig := res.Writer
			s := m.Begin(orig, c.Request())
			res.Writer = s.Writer()
			defer func() {
				if err := s.Finish(); err != nil {
					xlog.Warn(c.Request().Context(), "xecho: flush response failed", xlog.Err(err))
				}
				res.Writer = orig
			}()

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			return err
		}
	}
}
