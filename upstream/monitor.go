package upstream

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/metrics"
)

// healthMonitor 后台健康探测器（内部使用）
//
// 每个探测周期对所有端点并发探测一轮，探测结果通过端点的
// recordSuccess / recordFailure 更新状态。探测失败只影响评分，
// 从不中断探测循环。
type healthMonitor struct {
	endpoints  []*endpoint
	client     *http.Client
	interval   time.Duration
	timeout    time.Duration
	healthPath string

	logger     clog.Logger
	scoreGauge metrics.Gauge

	stopCh    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func newHealthMonitor(
	endpoints []*endpoint,
	client *http.Client,
	cfg *Config,
	logger clog.Logger,
	scoreGauge metrics.Gauge,
) *healthMonitor {
	return &healthMonitor{
		endpoints:  endpoints,
		client:     client,
		interval:   cfg.ProbeInterval,
		timeout:    cfg.ProbeTimeout,
		healthPath: cfg.HealthPath,
		logger:     logger,
		scoreGauge: scoreGauge,
		stopCh:     make(chan struct{}),
	}
}

// Start 启动探测循环，立即执行第一轮探测
func (m *healthMonitor) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.loop()
	})
}

// Stop 停止探测循环并等待退出
func (m *healthMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

func (m *healthMonitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probeAll()

	for {
		select {
		case <-ticker.C:
			m.probeAll()
		case <-m.stopCh:
			return
		}
	}
}

// probeAll 并发探测所有端点并等待本轮完成
func (m *healthMonitor) probeAll() {
	var wg sync.WaitGroup
	for _, ep := range m.endpoints {
		wg.Add(1)
		go func(ep *endpoint) {
			defer wg.Done()
			m.probe(ep)
		}(ep)
	}
	wg.Wait()

	if m.scoreGauge != nil {
		for _, ep := range m.endpoints {
			st := ep.snapshot()
			m.scoreGauge.Set(context.Background(), st.HealthScore,
				metrics.L(LabelEndpoint, st.URL))
		}
	}
}

// probe 对单个端点执行一次健康探测
//
// 200 视为成功，其他状态码、传输错误和超时都视为失败。
func (m *healthMonitor) probe(ep *endpoint) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.url+m.healthPath, nil)
	if err != nil {
		ep.recordFailure()
		return
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		ep.recordFailure()
		if m.logger != nil {
			m.logger.Debug("health probe failed",
				clog.String("endpoint", ep.url),
				clog.Error(err))
		}
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		ep.recordFailure()
		if m.logger != nil {
			m.logger.Debug("health probe returned non-200",
				clog.String("endpoint", ep.url),
				clog.Int("status", resp.StatusCode))
		}
		return
	}

	ep.recordSuccess(latency)
}
