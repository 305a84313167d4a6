// Package upstream 提供面向不可靠上游端点集合的健康感知负载均衡与弹性执行。
//
// upstream 是 Bedrock 治理层的核心组件，它提供了：
// - 静态端点集合上的加权随机选择，权重来自实时健康评分
// - 后台健康探测：周期性 GET {url}/health，按结果更新端点状态
// - 弹性执行：逻辑请求在重试预算内自动切换端点，按响应分类决定重试
// - 429 响应遵循 Retry-After 暂停，5xx/连接错误换端点重试，4xx 立即失败
// - 可选的端点级熔断器（sony/gobreaker）
// - 与基础组件（日志、指标）的深度集成
//
// ## 基本使用
//
//	pool, _ := upstream.New(&upstream.Config{
//	    Endpoints: []upstream.EndpointConfig{
//	        {URL: "https://rpc-a.example.com", Weight: 3},
//	        {URL: "https://rpc-b.example.com", Weight: 1},
//	    },
//	    MaxRetries: 3,
//	}, upstream.WithLogger(logger))
//
//	pool.Start()
//	defer pool.Stop()
//
//	result, err := pool.Execute(ctx, http.MethodPost, "/v1/orders", payload)
//
// ## 健康评分
//
// 每个端点维护一个 [0,1] 的健康评分，由连续错误数和最近延迟共同决定。
// 连续错误达到 MaxRetries 的端点被标记为不活跃（评分归 0），
// 不参与选择，直到健康探测或业务请求成功使其恢复。
//
// ## 并发模型
//
// 端点状态使用端点级互斥锁保护，不存在跨端点的全局锁；
// Execute 可以在多个 goroutine 中并发调用。
package upstream

import (
	"context"

	"github.com/Etherlyweiner/bedrock/clog"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Result 一次逻辑请求的成功结果
type Result struct {
	// StatusCode HTTP 状态码（2xx）
	StatusCode int

	// Body 响应体
	Body []byte

	// Endpoint 实际服务本次请求的端点 URL
	Endpoint string

	// Attempts 本次逻辑请求消耗的尝试次数（含成功的那一次）
	Attempts int
}

// Pool 上游端点池核心接口
type Pool interface {
	// Execute 在端点集合上执行一次逻辑请求
	//
	// 每次尝试选择一个活跃端点发出 HTTP 请求，按分类结果决定重试或终止；
	// 重试预算耗尽后返回 ErrMaxRetriesExceeded。
	// body 可以为 nil，重试时会按原内容重放。
	Execute(ctx context.Context, method, path string, body []byte) (*Result, error)

	// Endpoints 返回所有端点的当前状态快照
	Endpoints() []EndpointStatus

	// Start 启动后台健康探测
	Start()

	// Stop 停止后台健康探测并等待探测 goroutine 退出
	Stop()
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建上游端点池
// 这是标准的工厂函数，支持在不依赖其他容器的情况下独立实例化
//
// 参数:
//   - cfg: 端点池配置，必须至少包含一个端点
//   - opts: 可选参数 (Logger, Meter, HTTPClient, Rand, Breaker)
func New(cfg *Config, opts ...Option) (Pool, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	logger := opt.logger
	if logger != nil {
		logger = logger.With(clog.String("component", "upstream"))
	}

	return newPool(cfg, logger, &opt)
}
