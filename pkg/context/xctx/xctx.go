package xctx

import (
	"context"
	"errors"
)

// =============================================================================
// Context Key 类型定义
// =============================================================================

// 设计决策: contextKey 使用包私有的 string 类型，context 比较包含类型信息，
// 不会与其他包的 key 冲突；字符串值在调试输出中可读。
type contextKey string

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingTraceID trace_id 缺失
	ErrMissingTraceID = errors.New("xctx: missing trace_id")

	// ErrMissingSpanID span_id 缺失
	ErrMissingSpanID = errors.New("xctx: missing span_id")

	// ErrMissingRequestID request_id 缺失
	ErrMissingRequestID = errors.New("xctx: missing request_id")
)

// withString 写入字符串字段，nil ctx 返回 ErrNilContext。
func withString(ctx context.Context, key contextKey, v string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, key, v), nil
}

// stringValue 读取字符串字段，缺失或 nil ctx 返回空字符串。
func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
