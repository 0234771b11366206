// Package xtrace 在入站请求头部与进程内追踪上下文之间做桥接，
// 并在出站 HTTP/gRPC 调用上传播子 span。
//
// # 入站解码顺序
//
//  1. traceparent 合法：按 W3C Trace Context 解码，parent-id 作为本请求的 span ID，
//     忽略同时存在的 B3 头部；格式非法时按缺失处理
//  2. x-b3-traceid 与 x-b3-spanid 存在：按 B3 多头部解码，x-b3-sampled 为 "1" 表示采样
//  3. 都没有：新建根上下文（随机 trace ID / span ID），采样标志由 WithRootSampled 或 WithRootSampler 决定
//
// 头部名称大小写不敏感，ID 值在解码前转为小写。
// 解码结果同步到 xctx，日志通过 xlog.EnrichHandler 自动带上 trace_id / span_id。
//
// # 出站传播
//
// Bridge.Transport 基于 otelhttp 为每次调用创建客户端子 span：
// trace ID 不变，span ID 新生成，父 span 为当前 span。
// 按 WithEmit 写入 traceparent 和/或 x-b3-traceid、x-b3-spanid、
// x-b3-parentspanid、x-b3-sampled。两种格式的头部互不重叠，可同时启用。
//
// 出站时 context 中没有激活的追踪上下文：
//
//	WithStrictActivation(true)   返回 ErrMissingActivation，请求不会发出
//	WithStrictActivation(false)  新建根上下文并记录告警（默认）
//
// # 生命周期
//
// 未通过 WithTracerProvider 传入 provider 时，Bridge 自建 SDK TracerProvider，
// 进程退出前调用 Shutdown 释放。
package xtrace
