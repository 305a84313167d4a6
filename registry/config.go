package registry

import (
	"time"

	"github.com/Etherlyweiner/bedrock/xerrors"
)

// Config 注册表配置
type Config struct {
	// HeartbeatInterval 预期的实例心跳周期，健康窗口和清理窗口
	// 都由它推导（默认：30 秒）
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// CleanupInterval 后台清理循环的执行周期（默认：10 秒）
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// Namespace 持久化存储中的键前缀，用于多环境隔离
	// （默认：bedrock:registry）
	Namespace string `mapstructure:"namespace"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 10 * time.Second
	}
	if c.Namespace == "" {
		c.Namespace = "bedrock:registry"
	}
}

// validate 验证配置
func (c *Config) validate() error {
	if c.HeartbeatInterval < 0 || c.CleanupInterval < 0 {
		return xerrors.New("registry: intervals must be positive")
	}
	return nil
}

// healthyWindow 健康窗口：最近心跳必须在该时长内
func (c *Config) healthyWindow() time.Duration {
	return 2 * c.HeartbeatInterval
}

// expiryWindow 清理窗口：最近心跳超过该时长的实例被移除
func (c *Config) expiryWindow() time.Duration {
	return 3 * c.HeartbeatInterval
}
