// Package xctx 提供请求级追踪上下文的存取。
//
// # 核心功能
//
// 追踪信息（Trace）:
//   - trace_id       : 128-bit，32 位小写十六进制
//   - span_id        : 64-bit，当前请求的 span
//   - parent_span_id : 上游父 span（仅 B3 入站请求存在）
//   - request_id     : 请求标识
//   - trace_flags    : 采样标志（"01" / "00"）
//   - scheme         : 追踪来源（w3c / b3 / root）
//
// 捕获头部（Headers）: 请求入口按白名单捕获的头部只读快照，
// 供出站调用重新传播。
//
// # 命名约定
//
//	WithXxx(ctx, value)    - 注入
//	Xxx(ctx)               - 读取，缺失时返回零值
//	RequireXxx(ctx)        - 强制读取，缺失时返回错误
//	GetTrace(ctx)          - 批量读取
//
// xctx 是纯存取层，不校验字段格式。格式校验在 xtrace 的解码阶段完成。
package xctx
