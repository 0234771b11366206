package xecho_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xtracing/pkg/observability/xmirror"
	"github.com/omeyang/xtracing/pkg/observability/xtrace"
	"github.com/omeyang/xtracing/pkg/web/xecho"
	"github.com/omeyang/xtracing/pkg/xtracing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testTraceID = "0af7651916cd43dd8448eb211c80319c"
	testSpanID  = "b7ad6b7169203331"
)

func newEcho(t *testing.T) *echo.Echo {
	t.Helper()
	tr, err := xtracing.New(xtracing.WithHeaders("x-tenant-id"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })

	e := echo.New()
	e.Use(xecho.Middleware(tr))
	return e
}

func b3Request(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-B3-TraceId", testTraceID)
	req.Header.Set("X-B3-SpanId", testSpanID)
	req.Header.Set("X-B3-Sampled", "1")
	return req
}

func TestMiddleware(t *testing.T) {
	e := newEcho(t)

	var info xtrace.TraceInfo
	e.GET("/activity", func(c echo.Context) error {
		info = xtrace.TraceInfoFromContext(c.Request().Context())
		return c.JSON(http.StatusOK, map[string]string{"trace_id": info.TraceID})
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, b3Request("/activity"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"trace_id":"`+testTraceID+`"}`, rec.Body.String())
	assert.Equal(t, testSpanID, info.SpanID)
	assert.Equal(t, xtrace.SchemeB3, info.Scheme)
	assert.Equal(t, testTraceID, rec.Header().Get("x-b3-traceid"))
	assert.Equal(t, testSpanID, rec.Header().Get("x-b3-spanid"))
}

func TestMirrorOnError(t *testing.T) {
	e := newEcho(t)
	e.GET("/fail", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, b3Request("/fail"))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, rec.Body.String(), "short and stout")
	assert.Equal(t, testTraceID, rec.Header().Get("x-b3-traceid"))
}

func TestMirrorKeepsHandlerHeader(t *testing.T) {
	e := echo.New()
	e.Use(xecho.Mirror(xmirror.New()))
	e.GET("/", func(c echo.Context) error {
		c.Response().Header().Set("x-b3-spanid", "mine")
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, b3Request("/"))

	assert.Equal(t, "mine", rec.Header().Get("x-b3-spanid"))
	assert.Equal(t, testTraceID, rec.Header().Get("x-b3-traceid"))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMirrorOnPanic(t *testing.T) {
	e := echo.New()
	e.Use(xecho.Mirror(xmirror.New()))
	e.GET("/", func(c echo.Context) error {
		_ = c.String(http.StatusServiceUnavailable, "down")
		panic("boom")
	})

	rec := httptest.NewRecorder()
	assert.Panics(t, func() { e.ServeHTTP(rec, b3Request("/")) })
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, testSpanID, rec.Header().Get("x-b3-spanid"))
}
