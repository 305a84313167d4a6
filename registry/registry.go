// Package registry 提供基于心跳的服务实例存活注册表。
//
// registry 是 Bedrock 治理层的核心组件，它提供了：
// - 实例注册/心跳/注销/健康查询的统一 Registry 接口
// - 租约式过期：健康视图由"最近一次心跳是否够新"决定，无共识协议
// - 后台清理：长期失联的实例被周期性移除，心跳与清理的竞争不会丢失实例
// - 可插拔存储：默认内存存储，可选 Redis / Etcd 持久化存储
// - 与基础组件（日志、指标、连接器）的深度集成
//
// ## 基本使用
//
//	reg, _ := registry.New(&registry.Config{
//	    HeartbeatInterval: 30 * time.Second,
//	}, registry.WithLogger(logger))
//
//	reg.Start()
//	defer reg.Close()
//
//	id, _ := reg.Register(ctx, "trader", "10.0.0.5", 8080, nil)
//	go func() {
//	    for range time.Tick(30 * time.Second) {
//	        _ = reg.Heartbeat(ctx, "trader", id)
//	    }
//	}()
//
//	instances, _ := reg.GetHealthyInstances(ctx, "trader")
//
// ## 存活窗口
//
// 设心跳周期为 T：
//   - 健康窗口 2T：最近心跳在 2T 内且状态为 healthy 的实例才出现在健康视图中
//   - 清理窗口 3T：最近心跳超过 3T 的实例被后台清理移除
//
// 两个窗口之间的实例暂时不健康但尚未被移除，心跳恢复后立即回到健康视图。
package registry

import (
	"context"

	"github.com/Etherlyweiner/bedrock/clog"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Registry 存活注册表核心接口
type Registry interface {
	// Register 注册一个服务实例，返回生成的实例 ID
	//
	// 新实例状态为 starting，最近心跳设为当前时间。
	Register(ctx context.Context, name, host string, port int, metadata map[string]string) (string, error)

	// Heartbeat 刷新实例的最近心跳时间并将状态置为 healthy
	//
	// 实例不存在时返回 ErrRegistrationNotFound。
	Heartbeat(ctx context.Context, name, id string) error

	// Deregister 立即移除实例
	//
	// 实例不存在时返回 ErrRegistrationNotFound。
	Deregister(ctx context.Context, name, id string) error

	// GetHealthyInstances 返回服务当前健康的实例列表
	//
	// 健康 = 状态为 healthy 且最近心跳在 2 个心跳周期内。
	GetHealthyInstances(ctx context.Context, name string) ([]*ServiceInstance, error)

	// Start 启动后台清理循环
	Start()

	// Stop 停止后台清理循环并等待退出
	Stop()

	// Close 停止清理循环并释放存储资源
	Close() error
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建存活注册表
// 这是标准的工厂函数，支持在不依赖其他容器的情况下独立实例化
//
// 参数:
//   - cfg: 注册表配置，nil 时使用默认配置
//   - opts: 可选参数 (Logger, Meter, RedisConnector, EtcdConnector)
//
// 默认使用内存存储；通过 WithRedisConnector / WithEtcdConnector
// 切换到持久化存储，两者同时提供时返回错误。
func New(cfg *Config, opts ...Option) (Registry, error) {
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
		logger = logger.With(clog.String("component", "registry"))
	}

	store, err := newStore(cfg, &opt)
	if err != nil {
		return nil, err
	}

	return newRegistry(cfg, store, logger, opt.meter)
}
