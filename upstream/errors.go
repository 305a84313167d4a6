package upstream

import "github.com/Etherlyweiner/bedrock/xerrors"

// 错误定义
var (
	// ErrNoEndpointsConfigured 配置中没有任何端点
	ErrNoEndpointsConfigured = xerrors.New("upstream: no endpoints configured")

	// ErrInvalidEndpoint 端点配置无效
	ErrInvalidEndpoint = xerrors.New("upstream: invalid endpoint")

	// ErrNoEndpointsAvailable 所有端点都处于不活跃状态
	ErrNoEndpointsAvailable = xerrors.New("upstream: no endpoints available")

	// ErrMaxRetriesExceeded 重试预算耗尽
	ErrMaxRetriesExceeded = xerrors.New("upstream: max retries exceeded")

	// ErrClientError 上游返回不可重试的 4xx 响应
	ErrClientError = xerrors.New("upstream: client error")
)
