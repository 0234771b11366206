package xretry

import (
	"context"
	"log/slog"
	"math"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/omeyang/xtracing/pkg/observability/xlog"
)

// Policy 重试策略，可直接从 xconf 反序列化。
type Policy struct {
	// Attempts 总执行次数（含首次），0 视为 1。
	Attempts uint `koanf:"attempts"`

	// Delay 首次重试前的等待时间，之后指数递增。
	Delay time.Duration `koanf:"delay"`

	// MaxDelay 单次等待上限，0 表示不限制。
	MaxDelay time.Duration `koanf:"max_delay"`
}

// DefaultPolicy 3 次 / 50ms 起 / 上限 500ms
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Delay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond}
}

// Permanent 标记 err 不再重试，nil 原样返回。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return retry.Unrecoverable(err)
}

// IsPermanent 报告 err 是否经 Permanent 标记。
func IsPermanent(err error) bool {
	return err != nil && !retry.IsRecoverable(err)
}

// backoff 第 n 次重试（从 1 开始）等待 Delay*2^(n-1)，不超过 MaxDelay。
func (p Policy) backoff(n uint, _ error, _ retry.DelayContext) time.Duration {
	if p.Delay <= 0 {
		return 0
	}
	d := p.Delay
	for i := uint(1); i < n; i++ {
		if (p.MaxDelay > 0 && d >= p.MaxDelay) || d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do 按 p 执行 fn，直到成功、返回 Permanent 错误、次数耗尽或 ctx 取消。
//
// 失败时只返回最后一次的错误，Permanent 标记会被剥离。
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(max(p.Attempts, 1)),
		retry.DelayType(p.backoff),
		retry.LastErrorOnly(true),
		retry.RetryIf(retry.IsRecoverable),
		retry.OnRetry(func(n uint, err error) {
			xlog.Debug(ctx, "xretry: attempt failed", slog.Uint64("attempt", uint64(n)+1), xlog.Err(err))
		}),
	}
	return retry.NewWithData[T](opts...).Do(func() (T, error) { return fn(ctx) })
}
