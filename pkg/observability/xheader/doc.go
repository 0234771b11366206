// Package xheader 在入站请求上捕获白名单头部，并在出站请求上原样（或重命名后）转发。
//
// 默认白名单只有 x-request-id；WithLegacyHeaders 额外捕获 B3 与 x-ot-span-context，
// 兼容依赖原样转发追踪头部的旧服务。
//
// 捕获结果是 xctx.Headers 只读快照，存放在请求 context 中，
// 同一请求内并发发起的出站调用可以无锁读取。
//
// 出站写入从不覆盖调用方已设置的头部。与 xtrace.Bridge 组合时，
// xheader.Transport 应位于 Bridge.Transport 内层，这样 Bridge 生成的追踪头部优先。
package xheader
