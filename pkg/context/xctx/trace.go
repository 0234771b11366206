package xctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// =============================================================================
// ID 格式常量（W3C Trace Context）
// =============================================================================

const (
	// TraceIDSize 128-bit，编码后 32 个十六进制字符
	TraceIDSize = 16

	// SpanIDSize 64-bit，编码后 16 个十六进制字符
	SpanIDSize = 8
)

// 追踪来源（Scheme）取值，记录当前追踪上下文由哪种解码器产生。
const (
	SchemeW3C  = "w3c"
	SchemeB3   = "b3"
	SchemeRoot = "root"
)

// 日志属性 Key，遵循 OpenTelemetry 的下划线命名。
const (
	KeyTraceID      = "trace_id"
	KeySpanID       = "span_id"
	KeyParentSpanID = "parent_span_id"
	KeyRequestID    = "request_id"
	KeyTraceFlags   = "trace_flags"

	traceFieldCount = 5
)

const (
	keyTraceID      = contextKey("xctx:trace_id")
	keySpanID       = contextKey("xctx:span_id")
	keyParentSpanID = contextKey("xctx:parent_span_id")
	keyRequestID    = contextKey("xctx:request_id")
	keyTraceFlags   = contextKey("xctx:trace_flags")
	keyScheme       = contextKey("xctx:scheme")
)

// =============================================================================
// 单字段存取
// =============================================================================

// WithTraceID 将 trace ID 注入 context。ctx 为 nil 时返回 ErrNilContext。
func WithTraceID(ctx context.Context, traceID string) (context.Context, error) {
	return withString(ctx, keyTraceID, traceID)
}

// TraceID 从 context 提取 trace ID，不存在返回空字符串。
func TraceID(ctx context.Context) string { return stringValue(ctx, keyTraceID) }

// WithSpanID 将 span ID 注入 context。
func WithSpanID(ctx context.Context, spanID string) (context.Context, error) {
	return withString(ctx, keySpanID, spanID)
}

// SpanID 从 context 提取 span ID。
func SpanID(ctx context.Context) string { return stringValue(ctx, keySpanID) }

// WithParentSpanID 将上游父 span ID 注入 context。
//
// 仅 B3 入站请求携带 x-b3-parentspanid 时存在，W3C traceparent 不传递父 span。
func WithParentSpanID(ctx context.Context, parentSpanID string) (context.Context, error) {
	return withString(ctx, keyParentSpanID, parentSpanID)
}

// ParentSpanID 从 context 提取父 span ID，不存在返回空字符串。
func ParentSpanID(ctx context.Context) string { return stringValue(ctx, keyParentSpanID) }

// WithRequestID 将 request ID 注入 context。
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	return withString(ctx, keyRequestID, requestID)
}

// RequestID 从 context 提取 request ID。
func RequestID(ctx context.Context) string { return stringValue(ctx, keyRequestID) }

// WithTraceFlags 将 trace flags 注入 context。
//
// 格式为 2 位十六进制字符串，"01" 表示已采样，"00" 表示未采样。
func WithTraceFlags(ctx context.Context, flags string) (context.Context, error) {
	return withString(ctx, keyTraceFlags, flags)
}

// TraceFlags 从 context 提取 trace flags，未设置返回空字符串。
func TraceFlags(ctx context.Context) string { return stringValue(ctx, keyTraceFlags) }

// WithScheme 记录追踪上下文的来源（SchemeW3C / SchemeB3 / SchemeRoot）。
func WithScheme(ctx context.Context, scheme string) (context.Context, error) {
	return withString(ctx, keyScheme, scheme)
}

// Scheme 返回追踪上下文的来源，未激活时返回空字符串。
func Scheme(ctx context.Context) string { return stringValue(ctx, keyScheme) }

// =============================================================================
// Require 函数
// =============================================================================

// RequireTraceID 获取 trace ID，缺失时返回 ErrMissingTraceID。
func RequireTraceID(ctx context.Context) (string, error) {
	return require(ctx, keyTraceID, ErrMissingTraceID)
}

// RequireSpanID 获取 span ID，缺失时返回 ErrMissingSpanID。
func RequireSpanID(ctx context.Context) (string, error) {
	return require(ctx, keySpanID, ErrMissingSpanID)
}

// RequireRequestID 获取 request ID，缺失时返回 ErrMissingRequestID。
func RequireRequestID(ctx context.Context) (string, error) {
	return require(ctx, keyRequestID, ErrMissingRequestID)
}

func require(ctx context.Context, key contextKey, missing error) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	if v := stringValue(ctx, key); v != "" {
		return v, nil
	}
	return "", missing
}

// =============================================================================
// ID 生成
// =============================================================================

// GenerateTraceID 生成 32 位小写十六进制的 trace ID（128-bit）。
//
// W3C 禁止全零 ID，出现时重新生成。crypto/rand 不可用属于系统级故障，直接 panic。
func GenerateTraceID() string { return randomHex(TraceIDSize) }

// GenerateSpanID 生成 16 位小写十六进制的 span ID（64-bit）。
func GenerateSpanID() string { return randomHex(SpanIDSize) }

// GenerateRequestID 生成 request ID（UUIDv4 字符串）。
func GenerateRequestID() string { return uuid.NewString() }

func randomHex(size int) string {
	buf := make([]byte, size)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic("xctx: crypto/rand.Read failed: " + err.Error())
		}
		for _, b := range buf {
			if b != 0 {
				return hex.EncodeToString(buf)
			}
		}
	}
}

// =============================================================================
// Trace 结构体（批量存取）
// =============================================================================

// Trace 请求级追踪信息快照。
type Trace struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	RequestID    string
	TraceFlags   string
	Scheme       string
}

// GetTrace 从 context 批量读取追踪信息，字段可能为空。
func GetTrace(ctx context.Context) Trace {
	return Trace{
		TraceID:      TraceID(ctx),
		SpanID:       SpanID(ctx),
		ParentSpanID: ParentSpanID(ctx),
		RequestID:    RequestID(ctx),
		TraceFlags:   TraceFlags(ctx),
		Scheme:       Scheme(ctx),
	}
}

// Sampled 报告 TraceFlags 的采样位是否置位。
func (t Trace) Sampled() bool {
	if len(t.TraceFlags) != 2 {
		return false
	}
	b, err := hex.DecodeString(t.TraceFlags)
	return err == nil && b[0]&0x01 == 0x01
}

// Validate 按 TraceID → SpanID 顺序返回第一个缺失字段的错误。
//
// RequestID、ParentSpanID、TraceFlags 为可选字段，不参与校验。
func (t Trace) Validate() error {
	if t.TraceID == "" {
		return ErrMissingTraceID
	}
	if t.SpanID == "" {
		return ErrMissingSpanID
	}
	return nil
}

// IsComplete 报告 TraceID 与 SpanID 是否都已存在。
func (t Trace) IsComplete() bool { return t.Validate() == nil }

// WithTrace 将 Trace 的非空字段批量注入 context，空字段跳过。
//
// 设计决策: 跳过空值意味着无法"清空"父 context 中的已有字段。
// 入口层激活追踪时父 context 通常为空，覆盖语义由新值完成。
func WithTrace(ctx context.Context, tr Trace) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	fields := [...]struct {
		key   contextKey
		value string
	}{
		{keyTraceID, tr.TraceID},
		{keySpanID, tr.SpanID},
		{keyParentSpanID, tr.ParentSpanID},
		{keyRequestID, tr.RequestID},
		{keyTraceFlags, tr.TraceFlags},
		{keyScheme, tr.Scheme},
	}
	for _, f := range fields {
		if f.value != "" {
			ctx = context.WithValue(ctx, f.key, f.value)
		}
	}
	return ctx, nil
}
