// Package observability 提供可观测性与追踪传播相关的子包。
//
// 子包列表：
//   - xtrace: 入站追踪头部解码、出站子 span 注入（HTTP/gRPC）
//   - xheader: 白名单头部捕获与出站转发
//   - xmirror: 入站 B3 标识镜像到响应头部
//   - xsampling: 新建根上下文的采样决策
//   - xmetrics: 传播过程的 OpenTelemetry 指标
//   - xlog: 结构化日志，基于 log/slog 扩展，自动携带追踪字段
//   - xrotate: 日志文件轮转
package observability
