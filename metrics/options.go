package metrics

import "github.com/Etherlyweiner/bedrock/clog"

// Option 配置 Meter 实例的选项函数类型
type Option func(*options)

// options 内部选项结构（非导出，只能通过 Option 函数修改）
type options struct {
	logger clog.Logger
}

// WithLogger 注入日志记录器
// 组件会自动为 logger 添加 "metrics" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}
