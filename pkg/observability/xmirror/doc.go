// Package xmirror 把入站请求的 B3 标识（x-b3-traceid、x-b3-spanid、x-b3-parentspanid）
// 写回响应头部，便于调用方从响应关联链路。
//
// 下游写入的状态码与响应体先进入缓冲区（bytebufferpool），处理结束后：
//
//  1. 对每个非空标识，仅当响应尚无同名头部时写入（小写）
//  2. 写出状态码（未设置时为 200）与缓冲内容
//  3. 归还缓冲区
//
// 以上步骤在 defer 中执行，下游 panic 时同样生效，panic 不会被吞掉。
//
// WithMaxBuffer 限制缓冲大小：超出时提前完成镜像与刷出，之后的写入直接透传，
// 适合大响应或流式响应。缓冲阶段的 Flush 调用被忽略。
package xmirror
