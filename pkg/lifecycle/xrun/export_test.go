package xrun

import "os"

// WithSignalChannelForTest 注入信号通道，避免测试发送真实信号。
func WithSignalChannelForTest(ch <-chan os.Signal) Option {
	return func(o *options) { o.sigCh = ch }
}
