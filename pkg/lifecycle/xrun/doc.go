// Package xrun 提供基于 errgroup 的服务生命周期管理。
//
//	err := xrun.Run(ctx, nil,
//		xrun.HTTPServer(srv, 10*time.Second),
//		watcher.Run,
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//		// 正常的信号退出
//	}
package xrun
