package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/metrics"
)

// pool Pool 接口实现（非导出）
type pool struct {
	cfg       *Config
	endpoints []*endpoint
	selector  *selector
	executor  *executor
	monitor   *healthMonitor
	logger    clog.Logger
}

// newPool 创建端点池（内部函数）
func newPool(cfg *Config, logger clog.Logger, opt *options) (Pool, error) {
	client := opt.httpClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	endpoints := make([]*endpoint, 0, len(cfg.Endpoints))
	for _, ec := range cfg.Endpoints {
		ep := newEndpoint(ec, cfg.MaxRetries)
		if opt.breaker {
			ep.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
				Name:    ep.url,
				Timeout: 30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= uint32(cfg.MaxRetries)
				},
			})
		}
		endpoints = append(endpoints, ep)
	}

	sel := newSelector(endpoints, opt.rnd)

	var (
		requestsCounter metrics.Counter
		errorsCounter   metrics.Counter
		latencyHist     metrics.Histogram
		scoreGauge      metrics.Gauge
	)
	if opt.meter != nil {
		requestsCounter, _ = opt.meter.Counter(MetricRequestsTotal, "Total request attempts per endpoint")
		errorsCounter, _ = opt.meter.Counter(MetricErrorsTotal, "Failed request attempts per endpoint and outcome")
		latencyHist, _ = opt.meter.Histogram(MetricRequestLatency, "Request latency per endpoint", metrics.WithUnit("ms"))
		scoreGauge, _ = opt.meter.Gauge(MetricHealthScore, "Current health score per endpoint")
	}

	exec := &executor{
		selector:        sel,
		client:          client,
		requestTimeout:  cfg.RequestTimeout,
		maxRetries:      cfg.MaxRetries,
		logger:          logger,
		sleep:           defaultSleep,
		requestsCounter: requestsCounter,
		errorsCounter:   errorsCounter,
		latencyHist:     latencyHist,
	}

	mon := newHealthMonitor(endpoints, client, cfg, logger, scoreGauge)

	if logger != nil {
		logger.Info("upstream pool created",
			clog.Int("endpoints", len(endpoints)),
			clog.Duration("probe_interval", cfg.ProbeInterval),
			clog.Int("max_retries", cfg.MaxRetries))
	}

	return &pool{
		cfg:       cfg,
		endpoints: endpoints,
		selector:  sel,
		executor:  exec,
		monitor:   mon,
		logger:    logger,
	}, nil
}

// Execute 在端点集合上执行一次逻辑请求
func (p *pool) Execute(ctx context.Context, method, path string, body []byte) (*Result, error) {
	return p.executor.Execute(ctx, method, path, body)
}

// Endpoints 返回所有端点的当前状态快照
func (p *pool) Endpoints() []EndpointStatus {
	statuses := make([]EndpointStatus, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		statuses = append(statuses, ep.snapshot())
	}
	return statuses
}

// Start 启动后台健康探测
func (p *pool) Start() {
	p.monitor.Start()
}

// Stop 停止后台健康探测
func (p *pool) Stop() {
	p.monitor.Stop()
}
