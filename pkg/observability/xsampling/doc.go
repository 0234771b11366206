// Package xsampling 提供新建根上下文的采样决策。
//
// 入站请求没有可用的追踪头部时，xtrace 新建一条链路，由 Sampler 决定其采样标志。
// RatioSampler 按 trace ID 哈希决策，同一条链路在各服务中结论一致。
//
//	s, err := xsampling.NewRatioSampler(0.1)
//	bridge, err := xtrace.NewBridge(xtrace.WithRootSampler(s))
package xsampling
