// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、文件轮转）
//   - EnrichHandler 自动从 context 注入 trace_id、span_id、parent_span_id 等追踪字段
//   - 动态级别调整（配置热更新）
//   - 全局 Logger 便利函数，签名为 (ctx, msg, ...slog.Attr)
//
// # 创建 Logger
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation(xrotate.DefaultConfig("/var/log/app.log")).
//		Build()
//	defer cleanup()
//
// # 日志级别
//
// LevelDebug(-4)、LevelInfo(0)、LevelWarn(4)、LevelError(8)。
// Level 实现 encoding.TextUnmarshaler，可直接作为 koanf 配置字段。
package xlog
