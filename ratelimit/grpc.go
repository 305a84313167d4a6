package ratelimit

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ========================================
// 服务端拦截器 (Server Interceptor)
// ========================================

// defaultGRPCKeyFunc 默认使用完整方法名作为限流键
func defaultGRPCKeyFunc(ctx context.Context, fullMethod string) string {
	return fullMethod
}

// UnaryServerInterceptor 返回 gRPC 一元调用服务端拦截器
//
// 参数:
//   - limiter: 限流器实例
//   - keyFunc: 从请求中提取限流键的函数，如果为 nil，默认使用 fullMethod
//
// 使用示例:
//
//	server := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(
//	        ratelimit.UnaryServerInterceptor(limiter, nil),
//	    ),
//	)
func UnaryServerInterceptor(
	limiter Limiter,
	keyFunc func(ctx context.Context, fullMethod string) string,
) grpc.UnaryServerInterceptor {
	if limiter == nil {
		limiter = Discard()
	}
	if keyFunc == nil {
		keyFunc = defaultGRPCKeyFunc
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		key := keyFunc(ctx, info.FullMethod)

		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			// 限流器出错时放行，避免影响业务
			return handler(ctx, req)
		}

		if !allowed {
			return nil, status.Error(codes.ResourceExhausted, ErrRateLimitExceeded.Error())
		}

		return handler(ctx, req)
	}
}

// ========================================
// 客户端拦截器 (Client Interceptor)
// ========================================

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
//
// 用于出站调用的自我限速，避免压垮下游服务。
func UnaryClientInterceptor(
	limiter Limiter,
	keyFunc func(ctx context.Context, fullMethod string) string,
) grpc.UnaryClientInterceptor {
	if limiter == nil {
		limiter = Discard()
	}
	if keyFunc == nil {
		keyFunc = defaultGRPCKeyFunc
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		key := keyFunc(ctx, method)

		allowed, err := limiter.Allow(ctx, key)
		if err == nil && !allowed {
			return status.Error(codes.ResourceExhausted, ErrRateLimitExceeded.Error())
		}

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
