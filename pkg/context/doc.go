// Package context 提供上下文相关的子包。
//
// 子包列表：
//   - xctx: 追踪字段、请求 ID 与捕获头部在 context.Context 中的存取
//
// 所有上下文信息通过 context.Context 传递，不使用全局变量。
package context
