package xtrace

import (
	"context"
	"fmt"
	"strings"

	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/omeyang/xtracing/pkg/observability/xlog"
)

// =============================================================================
// gRPC Metadata 载体
// =============================================================================

// MetadataCarrier 将 gRPC metadata 适配为 propagation.TextMapCarrier。
//
// metadata 的 key 总是小写，Get 返回第一个值。
type MetadataCarrier metadata.MD

// Get 返回 key 的第一个值
func (c MetadataCarrier) Get(key string) string {
	vals := metadata.MD(c).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Set 覆盖 key 的值
func (c MetadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

// Keys 返回全部 key
func (c MetadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// =============================================================================
// gRPC 服务端拦截器
// =============================================================================

// UnaryServerInterceptor 从 incoming metadata 解码并激活追踪上下文。
func (b *Bridge) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(b.activateIncoming(ctx), req)
	}
}

// StreamServerInterceptor 流式版本的 UnaryServerInterceptor。
func (b *Bridge) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: b.activateIncoming(ss.Context())})
	}
}

func (b *Bridge) activateIncoming(ctx context.Context) context.Context {
	md, _ := metadata.FromIncomingContext(ctx)
	return b.ExtractAndActivate(ctx, MetadataCarrier(md))
}

type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context { return w.ctx }

// =============================================================================
// gRPC 客户端拦截器
// =============================================================================

// UnaryClientInterceptor 为每次调用创建客户端子 span 并写入 outgoing metadata。
func (b *Bridge) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, span, err := b.startClientSpan(ctx, method)
		if err != nil {
			return err
		}
		defer span.End()

		err = invoker(ctx, method, req, reply, cc, opts...)
		endWithError(span, err)
		return err
	}
}

// StreamClientInterceptor 流式版本的 UnaryClientInterceptor。
//
// span 覆盖流的建立过程，不跟踪后续消息收发。
func (b *Bridge) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string,
		streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx, span, err := b.startClientSpan(ctx, method)
		if err != nil {
			return nil, err
		}
		defer span.End()

		cs, err := streamer(ctx, desc, cc, method, opts...)
		endWithError(span, err)
		return cs, err
	}
}

// startClientSpan 确保已激活追踪上下文，创建客户端 span 并注入 outgoing metadata。
func (b *Bridge) startClientSpan(ctx context.Context, method string) (context.Context, trace.Span, error) {
	parent := trace.SpanContextFromContext(ctx)
	if !parent.IsValid() {
		if b.strict {
			return ctx, nil, fmt.Errorf("%w: grpc %s", ErrMissingActivation, method)
		}
		xlog.Warn(ctx, "xtrace: outbound call without active trace context, starting new trace", xlog.Method(method))
		ctx = b.Activate(ctx, Extraction{}, "")
		parent = trace.SpanContextFromContext(ctx)
	}

	ctx, span := b.tracer.Start(ctx, strings.TrimPrefix(method, "/"), trace.WithSpanKind(trace.SpanKindClient))

	// 复制 metadata，避免修改调用方共享的 MD
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	b.propagator.Inject(ctx, MetadataCarrier(md))
	if b.emit.Has(EmitB3) {
		md.Set(HeaderB3ParentSpan, parent.SpanID().String())
	}
	return metadata.NewOutgoingContext(ctx, md), span, nil
}

func endWithError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}
