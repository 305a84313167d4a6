package registry

// Metrics 指标常量定义
const (
	// MetricRegistrationsTotal 注册次数 (Counter)
	MetricRegistrationsTotal = "registry_registrations_total"

	// MetricDeregistrationsTotal 注销次数 (Counter)
	MetricDeregistrationsTotal = "registry_deregistrations_total"

	// MetricHeartbeatsTotal 心跳次数 (Counter)
	MetricHeartbeatsTotal = "registry_heartbeats_total"

	// MetricExpirationsTotal 被清理循环移除的实例数 (Counter)
	MetricExpirationsTotal = "registry_expirations_total"

	// MetricInstances 每个服务的当前实例数 (Gauge)
	MetricInstances = "registry_instances"

	// LabelService 服务名标签
	LabelService = "service"
)
