package upstream

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// EndpointStatus 端点状态快照（只读），由 Pool.Endpoints 返回
type EndpointStatus struct {
	// URL 端点基础地址
	URL string

	// Weight 静态权重
	Weight int

	// HealthScore 当前健康评分，[0,1]
	HealthScore float64

	// LastCheck 最近一次状态更新时间（探测或业务请求）
	LastCheck time.Time

	// ConsecutiveErrors 当前连续错误次数
	ConsecutiveErrors int

	// LatencyMs 最近一次成功请求的延迟，毫秒
	LatencyMs float64

	// Active 端点是否参与选择
	Active bool
}

// endpoint 单个上游端点的运行时状态（内部使用）
//
// 所有字段由 mu 保护，recordSuccess / recordFailure 是唯一的状态变更入口。
type endpoint struct {
	mu sync.Mutex

	url    string
	weight int

	healthScore       float64
	lastCheck         time.Time
	consecutiveErrors int
	latencyMs         float64
	active            bool

	// maxErrors 失活阈值：连续错误达到该值后 active 置 false
	maxErrors int

	// breaker 可选的端点级熔断器，nil 表示未启用
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func newEndpoint(cfg EndpointConfig, maxErrors int) *endpoint {
	return &endpoint{
		url:         baseURL(cfg.URL),
		weight:      cfg.Weight,
		healthScore: 1.0,
		active:      true,
		maxErrors:   maxErrors,
	}
}

// recordSuccess 记录一次成功请求并重算健康评分
//
// 连续错误数减 1（不降到 0 以下），端点恢复活跃。
func (e *endpoint) recordSuccess(latency time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.latencyMs = float64(latency) / float64(time.Millisecond)
	if e.consecutiveErrors > 0 {
		e.consecutiveErrors--
	}
	e.active = true
	e.lastCheck = time.Now()
	e.recompute()
}

// recordFailure 记录一次失败请求并重算健康评分
func (e *endpoint) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveErrors++
	if e.consecutiveErrors >= e.maxErrors {
		e.active = false
	}
	e.lastCheck = time.Now()
	e.recompute()
}

// recompute 重算健康评分，必须在持有 mu 时调用
//
// 评分 = 0.6 * 错误因子 + 0.4 * 延迟因子，裁剪到 [0,1]；
// 不活跃端点评分恒为 0。
func (e *endpoint) recompute() {
	if !e.active {
		e.healthScore = 0
		return
	}

	errorFactor := 1 - 0.2*float64(e.consecutiveErrors)
	if errorFactor < 0 {
		errorFactor = 0
	}

	latencyFactor := 1 - e.latencyMs/1000
	if latencyFactor < 0 {
		latencyFactor = 0
	}

	score := 0.6*errorFactor + 0.4*latencyFactor
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	e.healthScore = score
}

// snapshot 返回端点状态的一致性快照
func (e *endpoint) snapshot() EndpointStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	return EndpointStatus{
		URL:               e.url,
		Weight:            e.weight,
		HealthScore:       e.healthScore,
		LastCheck:         e.lastCheck,
		ConsecutiveErrors: e.consecutiveErrors,
		LatencyMs:         e.latencyMs,
		Active:            e.active,
	}
}
