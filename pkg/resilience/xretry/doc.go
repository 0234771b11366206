// Package xretry 基于 avast/retry-go 的重试执行。
//
//	h, err := xretry.Do(ctx, xretry.DefaultPolicy(), func(ctx context.Context) (T, error) {
//		resp, err := call(ctx)
//		if isClientError(err) {
//			return zero, xretry.Permanent(err)
//		}
//		return resp, err
//	})
//
// 每次重试以 debug 级别记录日志，日志自动携带 ctx 中的追踪字段。
package xretry
