package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/metrics"
	"github.com/Etherlyweiner/bedrock/xerrors"
)

// liveness Registry 接口实现（非导出）
type liveness struct {
	cfg    *Config
	store  Store
	logger clog.Logger

	// now 可注入的时钟，仅测试替换
	now func() time.Time

	stopCh    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	closed    atomic.Bool

	regCounter   metrics.Counter
	deregCounter metrics.Counter
	hbCounter    metrics.Counter
	expCounter   metrics.Counter
	instGauge    metrics.Gauge
}

// newRegistry 创建注册表（内部函数）
func newRegistry(cfg *Config, store Store, logger clog.Logger, meter metrics.Meter) (Registry, error) {
	r := &liveness{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	if meter != nil {
		r.regCounter, _ = meter.Counter(MetricRegistrationsTotal, "Total instance registrations")
		r.deregCounter, _ = meter.Counter(MetricDeregistrationsTotal, "Total instance deregistrations")
		r.hbCounter, _ = meter.Counter(MetricHeartbeatsTotal, "Total heartbeats received")
		r.expCounter, _ = meter.Counter(MetricExpirationsTotal, "Total instances removed by cleanup")
		r.instGauge, _ = meter.Gauge(MetricInstances, "Current instance count per service")
	}

	if logger != nil {
		logger.Info("registry created",
			clog.Duration("heartbeat_interval", cfg.HeartbeatInterval),
			clog.Duration("cleanup_interval", cfg.CleanupInterval))
	}

	return r, nil
}

// Register 注册一个服务实例
func (r *liveness) Register(ctx context.Context, name, host string, port int, metadata map[string]string) (string, error) {
	if r.closed.Load() {
		return "", ErrRegistryClosed
	}
	if name == "" {
		return "", xerrors.Wrap(ErrInvalidInstance, "name is empty")
	}
	if host == "" {
		return "", xerrors.Wrap(ErrInvalidInstance, "host is empty")
	}
	if port <= 0 || port > 65535 {
		return "", xerrors.Wrapf(ErrInvalidInstance, "port %d out of range", port)
	}

	inst := &ServiceInstance{
		ID:            uuid.NewString(),
		Name:          name,
		Host:          host,
		Port:          port,
		Status:        StatusStarting,
		LastHeartbeat: r.now(),
		Metadata:      metadata,
	}

	if err := r.store.Put(ctx, inst); err != nil {
		return "", err
	}

	if r.regCounter != nil {
		r.regCounter.Inc(ctx, metrics.L(LabelService, name))
	}
	if r.instGauge != nil {
		r.instGauge.Inc(ctx, metrics.L(LabelService, name))
	}
	if r.logger != nil {
		r.logger.Info("instance registered",
			clog.String("service", name),
			clog.String("instance_id", inst.ID),
			clog.String("host", host),
			clog.Int("port", port))
	}

	return inst.ID, nil
}

// Heartbeat 刷新实例心跳
//
// 读取后回写，与并发的 Deregister 之间为后写者生效：注销方应先停止
// 心跳再调用 Deregister，否则被复活的实例要等心跳停发、超过过期窗口
// 后才会被清理。与后台清理的竞争由存储层条件删除保证，不受此限制。
func (r *liveness) Heartbeat(ctx context.Context, name, id string) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}

	inst, err := r.store.Get(ctx, name, id)
	if err != nil {
		return err
	}

	inst.Status = StatusHealthy
	inst.LastHeartbeat = r.now()
	if err := r.store.Put(ctx, inst); err != nil {
		return err
	}

	if r.hbCounter != nil {
		r.hbCounter.Inc(ctx, metrics.L(LabelService, name))
	}
	return nil
}

// Deregister 立即移除实例
func (r *liveness) Deregister(ctx context.Context, name, id string) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}

	if err := r.store.Delete(ctx, name, id); err != nil {
		return err
	}

	if r.deregCounter != nil {
		r.deregCounter.Inc(ctx, metrics.L(LabelService, name))
	}
	if r.instGauge != nil {
		r.instGauge.Dec(ctx, metrics.L(LabelService, name))
	}
	if r.logger != nil {
		r.logger.Info("instance deregistered",
			clog.String("service", name),
			clog.String("instance_id", id))
	}
	return nil
}

// GetHealthyInstances 返回服务当前健康的实例列表
func (r *liveness) GetHealthyInstances(ctx context.Context, name string) ([]*ServiceInstance, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}

	all, err := r.store.List(ctx, name)
	if err != nil {
		return nil, err
	}

	threshold := r.now().Add(-r.cfg.healthyWindow())
	healthy := make([]*ServiceInstance, 0, len(all))
	for _, inst := range all {
		if inst.Status == StatusHealthy && !inst.LastHeartbeat.Before(threshold) {
			healthy = append(healthy, inst)
		}
	}
	return healthy, nil
}

// Start 启动后台清理循环
func (r *liveness) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.cleanupLoop()
	})
}

// Stop 停止后台清理循环并等待退出
func (r *liveness) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

// Close 关闭注册表
func (r *liveness) Close() error {
	r.closed.Store(true)
	r.Stop()
	return r.store.Close()
}

func (r *liveness) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup 移除最近心跳超出清理窗口的实例
//
// 删除在存储层按实例当前心跳做条件比较，与并发心跳竞争时
// 以更新后的心跳为准。任何错误只记录日志，循环不会退出。
func (r *liveness) cleanup() {
	ctx := context.Background()
	cutoff := r.now().Add(-r.cfg.expiryWindow())

	names, err := r.store.Names(ctx)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("cleanup: list services failed", clog.Error(err))
		}
		return
	}

	for _, name := range names {
		instances, err := r.store.List(ctx, name)
		if err != nil {
			if r.logger != nil {
				r.logger.Error("cleanup: list instances failed",
					clog.String("service", name), clog.Error(err))
			}
			continue
		}

		for _, inst := range instances {
			if !inst.LastHeartbeat.Before(cutoff) {
				continue
			}
			removed, err := r.store.DeleteIfStale(ctx, name, inst.ID, cutoff)
			if err != nil {
				if r.logger != nil {
					r.logger.Error("cleanup: conditional delete failed",
						clog.String("service", name),
						clog.String("instance_id", inst.ID),
						clog.Error(err))
				}
				continue
			}
			if !removed {
				continue
			}

			if r.expCounter != nil {
				r.expCounter.Inc(ctx, metrics.L(LabelService, name))
			}
			if r.instGauge != nil {
				r.instGauge.Dec(ctx, metrics.L(LabelService, name))
			}
			if r.logger != nil {
				r.logger.Warn("instance expired, removed",
					clog.String("service", name),
					clog.String("instance_id", inst.ID),
					clog.Time("last_heartbeat", inst.LastHeartbeat))
			}
		}
	}
}
