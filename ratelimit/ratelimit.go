// Package ratelimit 提供基于令牌桶的按键限流组件，并支持对滥用键的临时封禁。
//
// ratelimit 是 Bedrock 治理层的核心组件，它提供了：
// - 统一的 Limiter 接口，按键（调用方身份或目标路径）限流
// - 基于 golang.org/x/time/rate 的令牌桶，支持突发流量
// - 键级封禁：令牌耗尽的键在 BlockDuration 内直接拒绝，不再触碰桶状态
// - 规则按键精确匹配，未命中时回退到默认规则
// - 开箱即用的 Gin 中间件和 gRPC 拦截器
// - 与基础组件（日志、指标）的深度集成
//
// ## 基本使用
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{
//	    Default: ratelimit.Rule{Rate: 10, Burst: 20, BlockDuration: time.Minute},
//	    Rules: map[string]ratelimit.Rule{
//	        "/api/orders": {Rate: 5, Burst: 5, BlockDuration: 30 * time.Second},
//	    },
//	}, ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	allowed, _ := limiter.Allow(ctx, "user:123")
//	if !allowed {
//	    return "rate limit exceeded"
//	}
//
// ## 封禁语义
//
// 桶状态和封禁状态相互独立：封禁期间令牌仍按速率回填，
// 但被封禁的键无论桶中有多少令牌都会被拒绝，直到封禁到期。
//
// ## 可观测性
//
// 通过注入 Logger 和 Meter 实现统一的日志和指标收集：
//
//	limiter, _ := ratelimit.New(cfg,
//	    ratelimit.WithLogger(logger),
//	    ratelimit.WithMeter(meter),
//	)
package ratelimit

import (
	"context"
	"time"

	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Rule 定义单个键的限流规则（令牌桶算法）
type Rule struct {
	// Rate 令牌生成速率（每秒生成多少个令牌）
	Rate float64 `mapstructure:"rate"`

	// Burst 令牌桶容量（突发最大请求数）
	Burst int `mapstructure:"burst"`

	// BlockDuration 令牌耗尽后键的封禁时长
	BlockDuration time.Duration `mapstructure:"block_duration"`
}

// valid 判断规则是否可用
func (r Rule) valid() bool {
	return r.Rate > 0 && r.Burst > 0 && r.BlockDuration > 0
}

// Limiter 限流器核心接口
type Limiter interface {
	// Allow 尝试获取 1 个令牌（非阻塞）
	//
	// key: 限流标识（如 IP, UserID, 目标路径）
	// 返回: allowed（是否允许）, error（系统错误）
	//
	// 被封禁的键在封禁到期前总是返回 false，且不消耗令牌。
	Allow(ctx context.Context, key string) (bool, error)

	// AllowN 尝试获取 N 个令牌（非阻塞）
	AllowN(ctx context.Context, key string, n int) (bool, error)

	// RuleFor 返回键生效的限流规则（精确匹配或默认规则）
	RuleFor(key string) Rule

	// Close 停止后台清理任务并释放资源
	Close() error
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 限流器配置
type Config struct {
	// Default 默认限流规则，未在 Rules 中精确命中的键使用此规则
	// （默认：Rate 10, Burst 20, BlockDuration 1 分钟）
	Default Rule `mapstructure:"default"`

	// Rules 按键精确匹配的限流规则
	Rules map[string]Rule `mapstructure:"rules"`

	// SweepInterval 清理过期封禁和空闲桶的间隔（默认：1 分钟）
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// IdleTimeout 桶空闲超时时间，超时的桶会被清理（默认：5 分钟）
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if !c.Default.valid() {
		c.Default = Rule{Rate: 10, Burst: 20, BlockDuration: time.Minute}
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

// validate 验证配置
func (c *Config) validate() error {
	for key, rule := range c.Rules {
		if !rule.valid() {
			return xerrors.Wrapf(ErrInvalidRule, "rule for key %q", key)
		}
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建限流器
// 这是标准的工厂函数，支持在不依赖其他容器的情况下独立实例化
//
// 参数:
//   - cfg: 限流配置，nil 时使用默认配置
//   - opts: 可选参数 (Logger, Meter)
func New(cfg *Config, opts ...Option) (Limiter, error) {
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
		logger = logger.With(clog.String("component", "ratelimit"))
	}

	return newLimiter(cfg, logger, opt.meter)
}
