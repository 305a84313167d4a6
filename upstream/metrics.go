package upstream

// Metrics 指标常量定义
const (
	// MetricRequestsTotal 每个端点承接的尝试次数 (Counter)
	MetricRequestsTotal = "upstream_requests_total"

	// MetricErrorsTotal 每个端点的失败尝试次数，按结果分类 (Counter)
	MetricErrorsTotal = "upstream_errors_total"

	// MetricRequestLatency 每个端点的请求延迟分布，单位毫秒 (Histogram)
	MetricRequestLatency = "upstream_request_latency_ms"

	// MetricHealthScore 每个端点的当前健康评分 (Gauge)
	MetricHealthScore = "upstream_health_score"

	// LabelEndpoint 端点标签
	LabelEndpoint = "endpoint"

	// LabelOutcome 尝试结果标签
	LabelOutcome = "outcome"

	// LabelStatusClass HTTP 状态类标签（2xx/4xx/5xx）
	LabelStatusClass = "status_class"
)
