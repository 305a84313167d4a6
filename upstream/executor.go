package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/metrics"
	"github.com/Etherlyweiner/bedrock/xerrors"
)

// ========================================
// 结果分类 (Outcome Classification)
// ========================================

// Outcome 单次尝试的分类结果
type Outcome string

const (
	// OutcomeSuccess 2xx 响应
	OutcomeSuccess Outcome = "success"

	// OutcomeServerError 5xx 响应，可换端点重试
	OutcomeServerError Outcome = "server_error"

	// OutcomeRateLimited 429 响应，按 Retry-After 暂停后重试
	OutcomeRateLimited Outcome = "rate_limit"

	// OutcomeClientError 其他 4xx 响应，立即终止
	OutcomeClientError Outcome = "client_error"

	// OutcomeConnectionError 传输错误或超时，可换端点重试
	OutcomeConnectionError Outcome = "connection_error"
)

// classify 对单次尝试的 (状态码, 错误) 做纯函数分类
func classify(status int, err error) Outcome {
	if err != nil {
		return OutcomeConnectionError
	}
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case status >= 500:
		return OutcomeServerError
	default:
		return OutcomeClientError
	}
}

// retryable 判断该分类结果是否允许继续消耗重试预算
func retryable(outcome Outcome) bool {
	switch outcome {
	case OutcomeServerError, OutcomeRateLimited, OutcomeConnectionError:
		return true
	default:
		return false
	}
}

// defaultRetryAfter 429 响应缺少或无法解析 Retry-After 头时的暂停时长
const defaultRetryAfter = 5 * time.Second

// parseRetryAfter 解析 Retry-After 头（整数秒），非法时退回默认值
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// ========================================
// 弹性执行 (Resilient Execution)
// ========================================

// executor 在端点集合上执行逻辑请求（内部使用）
type executor struct {
	selector *selector
	client   *http.Client

	requestTimeout time.Duration
	maxRetries     int

	logger clog.Logger

	// sleep 可注入的暂停函数，仅测试替换；返回非 nil 表示 ctx 已取消
	sleep func(ctx context.Context, d time.Duration) error

	requestsCounter metrics.Counter
	errorsCounter   metrics.Counter
	latencyHist     metrics.Histogram
}

// attemptResult 单次尝试的原始结果
type attemptResult struct {
	status     int
	body       []byte
	retryAfter string
	latency    time.Duration
	err        error
}

// Execute 执行一次逻辑请求，在重试预算内自动切换端点
func (x *executor) Execute(ctx context.Context, method, path string, body []byte) (*Result, error) {
	var (
		lastErr      error
		lastEndpoint string
	)

	for attempt := 1; attempt <= x.maxRetries; attempt++ {
		ep, err := x.selector.pick()
		if err != nil {
			return nil, err
		}
		lastEndpoint = ep.url

		res := x.attempt(ctx, ep, method, path, body)
		outcome := classify(res.status, res.err)

		if x.requestsCounter != nil {
			x.requestsCounter.Inc(ctx,
				metrics.L(LabelEndpoint, ep.url),
				metrics.L(LabelStatusClass, metrics.HTTPStatusClass(res.status)))
		}
		if x.latencyHist != nil && res.err == nil {
			x.latencyHist.Record(ctx, float64(res.latency)/float64(time.Millisecond),
				metrics.L(LabelEndpoint, ep.url))
		}

		if outcome == OutcomeSuccess {
			ep.recordSuccess(res.latency)
			return &Result{
				StatusCode: res.status,
				Body:       res.body,
				Endpoint:   ep.url,
				Attempts:   attempt,
			}, nil
		}

		if x.errorsCounter != nil {
			x.errorsCounter.Inc(ctx,
				metrics.L(LabelEndpoint, ep.url),
				metrics.L(LabelOutcome, string(outcome)))
		}

		// 其余 4xx 反映请求本身的问题而非端点故障，不计入健康反馈
		if !retryable(outcome) {
			return nil, xerrors.Wrapf(ErrClientError,
				"endpoint %s returned status %d", ep.url, res.status)
		}

		ep.recordFailure()

		switch outcome {
		case OutcomeRateLimited:
			pause := parseRetryAfter(res.retryAfter)
			if x.logger != nil {
				x.logger.Warn("endpoint rate limited, pausing",
					clog.String("endpoint", ep.url),
					clog.Duration("retry_after", pause),
					clog.Int("attempt", attempt))
			}
			lastErr = xerrors.Newf("endpoint %s rate limited (429)", ep.url)
			// 预算已耗尽时无需再等待
			if attempt < x.maxRetries {
				if err := x.sleep(ctx, pause); err != nil {
					return nil, err
				}
			}

		case OutcomeServerError:
			lastErr = xerrors.Newf("endpoint %s returned status %d", ep.url, res.status)
			if x.logger != nil {
				x.logger.Warn("endpoint returned server error",
					clog.String("endpoint", ep.url),
					clog.Int("status", res.status),
					clog.Int("attempt", attempt))
			}

		case OutcomeConnectionError:
			lastErr = res.err
			if x.logger != nil {
				x.logger.Warn("endpoint connection error",
					clog.String("endpoint", ep.url),
					clog.Error(res.err),
					clog.Int("attempt", attempt))
			}
		}
	}

	return nil, xerrors.Wrapf(ErrMaxRetriesExceeded,
		"%d attempts exhausted, last endpoint %s, last error: %v",
		x.maxRetries, lastEndpoint, lastErr)
}

// attempt 对单个端点执行一次 HTTP 请求尝试
//
// 启用熔断器时请求经由熔断器执行，打开状态的短路按连接错误处理。
func (x *executor) attempt(ctx context.Context, ep *endpoint, method, path string, body []byte) attemptResult {
	if ep.breaker == nil {
		return x.doRequest(ctx, ep, method, path, body)
	}

	var res attemptResult
	_, err := ep.breaker.Execute(func() ([]byte, error) {
		res = x.doRequest(ctx, ep, method, path, body)
		if res.err != nil {
			return nil, res.err
		}
		if res.status >= 500 {
			return nil, xerrors.Newf("status %d", res.status)
		}
		return res.body, nil
	})
	if err != nil && (xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests)) {
		return attemptResult{err: err}
	}
	return res
}

// doRequest 发出带单次尝试超时的 HTTP 请求并读取响应体
func (x *executor) doRequest(ctx context.Context, ep *endpoint, method, path string, body []byte) attemptResult {
	attemptCtx, cancel := context.WithTimeout(ctx, x.requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, ep.url+path, reader)
	if err != nil {
		return attemptResult{err: err}
	}

	start := time.Now()
	resp, err := x.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return attemptResult{err: err, latency: latency}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{err: err, latency: latency}
	}

	return attemptResult{
		status:     resp.StatusCode,
		body:       respBody,
		retryAfter: resp.Header.Get("Retry-After"),
		latency:    latency,
	}
}

// defaultSleep 默认暂停实现，ctx 取消时提前返回
func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
