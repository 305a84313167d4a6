package ratelimit

import "github.com/Etherlyweiner/bedrock/xerrors"

// 错误定义
var (
	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.New("ratelimit: key is empty")

	// ErrInvalidRule 限流规则无效
	ErrInvalidRule = xerrors.New("ratelimit: invalid rule")

	// ErrClosed 限流器已关闭
	ErrClosed = xerrors.New("ratelimit: limiter is closed")

	// ErrRateLimitExceeded 限流阈值超出
	ErrRateLimitExceeded = xerrors.New("ratelimit: rate limit exceeded")
)
