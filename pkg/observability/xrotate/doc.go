// Package xrotate 提供基于 lumberjack 的日志文件轮转。
//
// Config 带 koanf 标签，可从配置文件直接加载后交给 xlog.Builder.SetRotation。
package xrotate
