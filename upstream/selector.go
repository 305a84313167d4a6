package upstream

import (
	"math/rand"
	"sync"
	"time"
)

// selector 基于健康评分的加权随机选择器（内部使用）
//
// 选择权重 = 健康评分 * 静态权重。所有活跃端点权重之和为 0 时
// （例如全部刚从失活恢复且延迟极差），退化为活跃端点间的均匀随机。
type selector struct {
	endpoints []*endpoint

	// rand.Rand 非并发安全，用独立的小锁保护
	mu  sync.Mutex
	rnd *rand.Rand
}

func newSelector(endpoints []*endpoint, rnd *rand.Rand) *selector {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &selector{endpoints: endpoints, rnd: rnd}
}

// pick 选择一个活跃端点
//
// 没有任何活跃端点时返回 ErrNoEndpointsAvailable。
func (s *selector) pick() (*endpoint, error) {
	type candidate struct {
		ep     *endpoint
		weight float64
	}

	var (
		active []candidate
		total  float64
	)
	for _, ep := range s.endpoints {
		st := ep.snapshot()
		if !st.Active {
			continue
		}
		w := st.HealthScore * float64(st.Weight)
		active = append(active, candidate{ep: ep, weight: w})
		total += w
	}

	if len(active) == 0 {
		return nil, ErrNoEndpointsAvailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if total <= 0 {
		return active[s.rnd.Intn(len(active))].ep, nil
	}

	r := s.rnd.Float64() * total
	var cum float64
	for _, c := range active {
		cum += c.weight
		if cum >= r {
			return c.ep, nil
		}
	}
	// 浮点累加误差兜底
	return active[len(active)-1].ep, nil
}
