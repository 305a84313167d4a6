package registry

import (
	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/connector"
	"github.com/Etherlyweiner/bedrock/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger clog.Logger
	meter  metrics.Meter
	redis  connector.RedisConnector
	etcd   connector.EtcdConnector
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

// WithRedisConnector 使用 Redis 作为实例存储
//
// 注册表仅借用连接器，Close 时不会关闭底层连接。
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redis = conn
	}
}

// WithEtcdConnector 使用 Etcd 作为实例存储
//
// 注册表仅借用连接器，Close 时不会关闭底层连接。
func WithEtcdConnector(conn connector.EtcdConnector) Option {
	return func(o *options) {
		o.etcd = conn
	}
}
