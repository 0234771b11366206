// Package xtracing 是追踪传播的注册入口，一次调用装配三个组件：
//
//	xmirror  响应镜像：把入站 B3 标识写回响应头部
//	xtrace   追踪上下文桥接：入站解码、出站子 span 注入
//	xheader  头部捕获与转发：x-request-id 等白名单头部
//
// 入站顺序为 mirror → bridge → capture → 业务处理；
// 出站由 Tracing.Transport 先注入追踪头部，再补充捕获的头部。
//
// 最小用法：
//
//	t, err := xtracing.New(xtracing.WithServiceName("checkout"))
//	if err != nil {
//		return err
//	}
//	defer t.Shutdown(context.Background())
//
//	http.Handle("/", t.Handler(mux))
//	client := t.Client(nil)
//
// 配置在 New 之后不可变，需要调整时重新创建 Tracing。
package xtracing
