// Package xbreaker 基于 sony/gobreaker 为出站 HTTP 调用提供熔断。
//
// Transport 位于追踪传播 Transport 之下：熔断拒绝的请求同样有出站 span，
// span 的错误即 ErrOpen。
//
//	client := tracing.Client(xbreaker.NewTransport(nil, xbreaker.Settings{Name: "inventory"}))
package xbreaker
