package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/metrics"
)

// bucketWrapper 包装 rate.Limiter 并记录最后访问时间
type bucketWrapper struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// limiter Limiter 接口实现（非导出）
type limiter struct {
	cfg    *Config
	logger clog.Logger

	buckets sync.Map // map[string]*bucketWrapper
	blocks  sync.Map // map[string]time.Time (blockedUntil)

	// now 可注入的时钟，仅测试替换
	now func() time.Time

	stopCh    chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	checksCounter  metrics.Counter
	allowedCounter metrics.Counter
	deniedCounter  metrics.Counter
	blockedGauge   metrics.Gauge
}

// newLimiter 创建限流器（内部函数）
func newLimiter(cfg *Config, logger clog.Logger, meter metrics.Meter) (Limiter, error) {
	l := &limiter{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	if meter != nil {
		l.checksCounter, _ = meter.Counter(MetricChecksTotal, "Total number of rate limit checks")
		l.allowedCounter, _ = meter.Counter(MetricAllowed, "Number of allowed requests")
		l.deniedCounter, _ = meter.Counter(MetricDenied, "Number of denied requests")
		l.blockedGauge, _ = meter.Gauge(MetricBlockedKeys, "Number of currently blocked keys")
	}

	go l.sweep()

	if logger != nil {
		logger.Info("rate limiter created",
			clog.Duration("sweep_interval", cfg.SweepInterval),
			clog.Duration("idle_timeout", cfg.IdleTimeout),
			clog.Int("rules", len(cfg.Rules)))
	}

	return l, nil
}

// Allow 尝试获取 1 个令牌
func (l *limiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN 尝试获取 N 个令牌
//
// 封禁检查先于桶逻辑：被封禁的键直接拒绝，不消耗令牌。
// 令牌不足时设置封禁并拒绝；本次拒绝和封禁期间的拒绝都计入 denied 指标。
func (l *limiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	if l.closed.Load() {
		return false, ErrClosed
	}
	if key == "" {
		return false, ErrKeyEmpty
	}
	if n <= 0 {
		return false, ErrInvalidRule
	}

	if l.checksCounter != nil {
		l.checksCounter.Inc(ctx)
	}

	now := l.now()
	rule := l.RuleFor(key)

	// 封禁状态检查
	if v, ok := l.blocks.Load(key); ok {
		until := v.(time.Time)
		if now.Before(until) {
			l.recordDenied(ctx, ReasonBlocked)
			return false, nil
		}
		// 封禁已过期，惰性移除
		if _, loaded := l.blocks.LoadAndDelete(key); loaded && l.blockedGauge != nil {
			l.blockedGauge.Dec(ctx)
		}
	}

	wrapper := l.getBucket(key, rule)

	wrapper.mu.Lock()
	allowed := wrapper.limiter.AllowN(now, n)
	wrapper.lastSeen = now
	wrapper.mu.Unlock()

	if allowed {
		if l.allowedCounter != nil {
			l.allowedCounter.Inc(ctx)
		}
		return true, nil
	}

	// 令牌不足，封禁该键。并发耗尽时只有写入成功的一方统计，避免 gauge 漂移
	if _, loaded := l.blocks.LoadOrStore(key, now.Add(rule.BlockDuration)); !loaded {
		if l.blockedGauge != nil {
			l.blockedGauge.Inc(ctx)
		}
		if l.logger != nil {
			l.logger.Warn("key exhausted token bucket, blocking",
				clog.String("key", key),
				clog.Duration("block_duration", rule.BlockDuration))
		}
	}
	l.recordDenied(ctx, ReasonBucket)

	return false, nil
}

// RuleFor 返回键生效的限流规则
func (l *limiter) RuleFor(key string) Rule {
	if rule, ok := l.cfg.Rules[key]; ok {
		return rule
	}
	return l.cfg.Default
}

// getBucket 获取或创建指定 key 的令牌桶
func (l *limiter) getBucket(key string, rule Rule) *bucketWrapper {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*bucketWrapper)
	}

	wrapper := &bucketWrapper{
		limiter:  rate.NewLimiter(rate.Limit(rule.Rate), rule.Burst),
		lastSeen: l.now(),
	}

	// 并发创建时使用已存在的
	actual, _ := l.buckets.LoadOrStore(key, wrapper)
	return actual.(*bucketWrapper)
}

func (l *limiter) recordDenied(ctx context.Context, reason string) {
	if l.deniedCounter != nil {
		l.deniedCounter.Inc(ctx, metrics.L(LabelReason, reason))
	}
}

// sweep 定期清理过期封禁和空闲的令牌桶
func (l *limiter) sweep() {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := l.now()
			expired := 0
			idle := 0

			l.blocks.Range(func(key, value any) bool {
				if !now.Before(value.(time.Time)) {
					if _, loaded := l.blocks.LoadAndDelete(key); loaded {
						expired++
						if l.blockedGauge != nil {
							l.blockedGauge.Dec(context.Background())
						}
					}
				}
				return true
			})

			l.buckets.Range(func(key, value any) bool {
				wrapper := value.(*bucketWrapper)
				wrapper.mu.Lock()
				lastSeen := wrapper.lastSeen
				wrapper.mu.Unlock()

				if now.Sub(lastSeen) > l.cfg.IdleTimeout {
					l.buckets.Delete(key)
					idle++
				}
				return true
			})

			if (expired > 0 || idle > 0) && l.logger != nil {
				l.logger.Debug("sweep completed",
					clog.Int("expired_blocks", expired),
					clog.Int("idle_buckets", idle))
			}

		case <-l.stopCh:
			return
		}
	}
}

// Close 关闭限流器
func (l *limiter) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.stopCh)
	})
	return nil
}
