// Package xmetrics 基于 OpenTelemetry metric API 记录追踪传播指标。
//
// 指标：
//
//	xtracing.extract.total{scheme}      入站激活次数（w3c / b3 / root）
//	xtracing.extract.malformed{header}  非法追踪头部次数
//	xtracing.headers.applied            出站请求写入的捕获头部数
//	xtracing.mirror.headers{header}     响应镜像的 B3 头部数
//	xtracing.mirror.flush.total{early}  响应刷出次数
package xmetrics
