package registry

import (
	"context"
	"time"
)

// Store 实例持久化接口
//
// 所有实现必须并发安全。Get / Delete 在实例不存在时返回
// ErrRegistrationNotFound。
type Store interface {
	// Put 写入或覆盖实例记录
	Put(ctx context.Context, inst *ServiceInstance) error

	// Get 读取单个实例
	Get(ctx context.Context, name, id string) (*ServiceInstance, error)

	// Delete 无条件删除实例
	Delete(ctx context.Context, name, id string) error

	// DeleteIfStale 仅当实例当前的最近心跳早于 cutoff 时删除
	//
	// 返回是否真正删除。比较必须在存储层原子完成，
	// 与心跳竞争时以存储中的最新值为准。
	DeleteIfStale(ctx context.Context, name, id string, cutoff time.Time) (bool, error)

	// List 返回服务的全部实例
	List(ctx context.Context, name string) ([]*ServiceInstance, error)

	// Names 返回当前存在实例的服务名列表
	Names(ctx context.Context) ([]string, error)

	// Close 释放存储自身持有的资源（不关闭借用的连接器）
	Close() error
}

// newStore 按选项选择存储后端（内部函数）
func newStore(cfg *Config, opt *options) (Store, error) {
	if opt.redis != nil && opt.etcd != nil {
		return nil, ErrStoreConflict
	}
	if opt.redis != nil {
		return newRedisStore(opt.redis.GetClient(), cfg.Namespace), nil
	}
	if opt.etcd != nil {
		return newEtcdStore(opt.etcd.GetClient(), cfg.Namespace), nil
	}
	return newMemoryStore(), nil
}
