package upstream

import (
	"math/rand"
	"net/http"

	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	httpClient *http.Client
	rnd        *rand.Rand
	breaker    bool
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMeter 设置 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithHTTPClient 设置自定义 HTTP 客户端
//
// 不设置时使用带连接池的默认客户端。超时由每次尝试的 context 控制，
// 客户端自身的 Timeout 不应设置。
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithRand 设置选择器使用的随机源
//
// 主要用于测试中注入固定种子以获得确定性的选择序列。
func WithRand(rnd *rand.Rand) Option {
	return func(o *options) {
		o.rnd = rnd
	}
}

// WithBreaker 为每个端点启用熔断器
//
// 熔断器在端点连续失败后短路对它的尝试，打开状态的尝试
// 按连接错误处理（换端点重试）。
func WithBreaker() Option {
	return func(o *options) {
		o.breaker = true
	}
}
