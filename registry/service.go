package registry

import "time"

// 实例状态
const (
	// StatusStarting 已注册但尚未上报过心跳
	StatusStarting = "starting"

	// StatusHealthy 至少上报过一次心跳
	StatusHealthy = "healthy"
)

// ServiceInstance 服务实例记录，以 (Name, ID) 唯一标识
type ServiceInstance struct {
	// ID 实例唯一标识，注册时生成
	ID string `json:"id"`

	// Name 服务名
	Name string `json:"name"`

	// Host 实例主机地址
	Host string `json:"host"`

	// Port 实例端口
	Port int `json:"port"`

	// Status 实例状态（starting | healthy）
	Status string `json:"status"`

	// LastHeartbeat 最近一次心跳时间（注册时为注册时间）
	LastHeartbeat time.Time `json:"last_heartbeat"`

	// Metadata 附加元数据，扁平字符串键值对
	Metadata map[string]string `json:"metadata,omitempty"`
}

// clone 返回实例的深拷贝，防止调用方与存储共享可变状态
func (s *ServiceInstance) clone() *ServiceInstance {
	dup := *s
	if s.Metadata != nil {
		dup.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}
