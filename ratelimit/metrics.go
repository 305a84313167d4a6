package ratelimit

// Metrics 指标常量定义
const (
	// MetricChecksTotal 限流检查总次数 (Counter)
	MetricChecksTotal = "ratelimit_checks_total"

	// MetricAllowed 允许通过的请求数 (Counter)
	MetricAllowed = "ratelimit_allowed_total"

	// MetricDenied 被拒绝的请求数 (Counter)
	MetricDenied = "ratelimit_denied_total"

	// MetricBlockedKeys 当前处于封禁状态的键数量 (Gauge)
	MetricBlockedKeys = "ratelimit_blocked_keys"

	// LabelKey 限流键标签
	LabelKey = "key"

	// LabelReason 拒绝原因标签 (bucket/blocked)
	LabelReason = "reason"

	// ReasonBucket 令牌不足导致的拒绝
	ReasonBucket = "bucket"

	// ReasonBlocked 键处于封禁状态导致的拒绝
	ReasonBlocked = "blocked"
)
