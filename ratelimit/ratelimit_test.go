package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/metrics"
)

// fakeClock 可控时钟，测试中代替真实时间
type fakeClock struct {
	mu     sync.Mutex
	base   time.Time
	offset time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{base: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(c.offset)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// newTestLimiter 创建限流器并注入可控时钟
func newTestLimiter(t *testing.T, cfg *Config) (*limiter, *fakeClock) {
	t.Helper()

	logger, _ := clog.New(&clog.Config{Level: "error"})
	lim, err := New(cfg, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lim.Close() })

	impl := lim.(*limiter)
	clock := newFakeClock()
	impl.now = clock.Now

	return impl, clock
}

func TestLimiter_Allow_Basic(t *testing.T) {
	lim, _ := newTestLimiter(t, &Config{
		Default: Rule{Rate: 1, Burst: 1, BlockDuration: time.Minute},
	})
	ctx := context.Background()

	t.Run("第一次请求应该被允许", func(t *testing.T) {
		allowed, err := lim.Allow(ctx, "key-a")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("令牌耗尽后应该被拒绝", func(t *testing.T) {
		allowed, err := lim.Allow(ctx, "key-b")
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = lim.Allow(ctx, "key-b")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("不同 key 独立限流", func(t *testing.T) {
		for _, key := range []string{"ind-1", "ind-2", "ind-3"} {
			allowed, err := lim.Allow(ctx, key)
			require.NoError(t, err)
			assert.True(t, allowed, "不同 key 的第一次请求都应该被允许")
		}
	})

	t.Run("空 key 返回错误", func(t *testing.T) {
		_, err := lim.Allow(ctx, "")
		assert.ErrorIs(t, err, ErrKeyEmpty)
	})
}

func TestLimiter_BlockLifecycle(t *testing.T) {
	// 对应容量 5、速率 1/s、封禁 10s 的完整生命周期
	lim, clock := newTestLimiter(t, &Config{
		Default: Rule{Rate: 1, Burst: 5, BlockDuration: 10 * time.Second},
	})
	ctx := context.Background()
	const key = "trader:1"

	// 前 5 次立即成功
	for i := 0; i < 5; i++ {
		allowed, err := lim.Allow(ctx, key)
		require.NoError(t, err)
		require.True(t, allowed, "第 %d 次请求应该被允许", i+1)
	}

	// 第 6 次被拒绝并触发封禁
	allowed, err := lim.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, allowed, "第 6 次请求应该被拒绝")

	// 封禁期间即使令牌已回填也一律拒绝
	clock.Advance(5 * time.Second)
	allowed, err = lim.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, allowed, "封禁期间应该被拒绝")

	// 封禁到期后恢复
	clock.Advance(6 * time.Second)
	allowed, err = lim.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, allowed, "封禁到期后应该至少有一次请求成功")
}

func TestLimiter_BlockDoesNotAffectOtherKeys(t *testing.T) {
	lim, _ := newTestLimiter(t, &Config{
		Default: Rule{Rate: 1, Burst: 1, BlockDuration: time.Minute},
	})
	ctx := context.Background()

	// 耗尽并封禁 key-a
	_, _ = lim.Allow(ctx, "key-a")
	allowed, err := lim.Allow(ctx, "key-a")
	require.NoError(t, err)
	require.False(t, allowed)

	// key-b 不受影响
	allowed, err = lim.Allow(ctx, "key-b")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_RuleFor(t *testing.T) {
	lim, _ := newTestLimiter(t, &Config{
		Default: Rule{Rate: 10, Burst: 20, BlockDuration: time.Minute},
		Rules: map[string]Rule{
			"/api/orders": {Rate: 5, Burst: 5, BlockDuration: 30 * time.Second},
		},
	})

	t.Run("精确匹配", func(t *testing.T) {
		rule := lim.RuleFor("/api/orders")
		assert.Equal(t, 5.0, rule.Rate)
		assert.Equal(t, 5, rule.Burst)
	})

	t.Run("未命中回退默认规则", func(t *testing.T) {
		rule := lim.RuleFor("/api/other")
		assert.Equal(t, 10.0, rule.Rate)
		assert.Equal(t, 20, rule.Burst)
	})
}

func TestLimiter_AllowN(t *testing.T) {
	lim, _ := newTestLimiter(t, &Config{
		Default: Rule{Rate: 10, Burst: 10, BlockDuration: time.Minute},
	})
	ctx := context.Background()

	t.Run("请求多个令牌", func(t *testing.T) {
		allowed, err := lim.AllowN(ctx, "multi", 5)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("超过剩余令牌被拒绝并封禁", func(t *testing.T) {
		allowed, err := lim.AllowN(ctx, "multi", 10)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("n 非正数返回错误", func(t *testing.T) {
		_, err := lim.AllowN(ctx, "multi", 0)
		assert.Error(t, err)
	})
}

func TestLimiter_Close(t *testing.T) {
	lim, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, lim.Close())
	// Close 幂等
	require.NoError(t, lim.Close())

	_, err = lim.Allow(context.Background(), "key")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	lim, _ := newTestLimiter(t, &Config{
		Default: Rule{Rate: 1000, Burst: 1000, BlockDuration: time.Minute},
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := []string{"con-a", "con-b", "con-c"}[id%3]
			for j := 0; j < 50; j++ {
				_, err := lim.Allow(ctx, key)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
}

// gaugeMeter 记录封禁 gauge 净值的测试用 Meter
type gaugeMeter struct {
	metrics.Meter
	blocked atomic.Int64
}

func (m *gaugeMeter) Gauge(name, desc string, opts ...metrics.MetricOption) (metrics.Gauge, error) {
	return &netGauge{val: &m.blocked}, nil
}

type netGauge struct {
	val *atomic.Int64
}

func (g *netGauge) Set(ctx context.Context, v float64, labels ...metrics.Label) {}
func (g *netGauge) Inc(ctx context.Context, labels ...metrics.Label)           { g.val.Add(1) }
func (g *netGauge) Dec(ctx context.Context, labels ...metrics.Label)           { g.val.Add(-1) }

func TestLimiter_BlockedGaugeBalance(t *testing.T) {
	meter := &gaugeMeter{Meter: metrics.Discard()}

	logger, _ := clog.New(&clog.Config{Level: "error"})
	lim, err := New(&Config{
		Default: Rule{Rate: 1, Burst: 1, BlockDuration: 10 * time.Second},
	}, WithLogger(logger), WithMeter(meter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lim.Close() })

	impl := lim.(*limiter)
	clock := newFakeClock()
	impl.now = clock.Now

	ctx := context.Background()

	// 并发耗尽同一个键，封禁只记录一次
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := impl.Allow(ctx, "hot-key")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), meter.blocked.Load(), "同一封禁不应重复计数")

	// 封禁过期后惰性移除，gauge 归零
	clock.Advance(11 * time.Second)
	allowed, err := impl.Allow(ctx, "hot-key")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(0), meter.blocked.Load())
}

func TestConfig_Validate(t *testing.T) {
	t.Run("非法规则返回错误", func(t *testing.T) {
		_, err := New(&Config{
			Rules: map[string]Rule{"bad": {Rate: -1}},
		})
		assert.ErrorIs(t, err, ErrInvalidRule)
	})

	t.Run("nil 配置使用默认规则", func(t *testing.T) {
		lim, err := New(nil)
		require.NoError(t, err)
		defer func() { _ = lim.Close() }()

		rule := lim.RuleFor("anything")
		assert.True(t, rule.valid())
	})
}

func TestDiscard(t *testing.T) {
	lim := Discard()
	defer func() { _ = lim.Close() }()

	for i := 0; i < 100; i++ {
		allowed, err := lim.Allow(context.Background(), "any")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
