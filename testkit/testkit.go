// Package testkit 提供 Bedrock 组件测试的通用辅助工具。
//
// 包含带超时的测试上下文、噪声受控的 Logger / Meter、
// 随机标识生成，以及连接本地 Redis / Etcd 的集成测试辅助函数。
// 集成辅助在 -short 模式下自动跳过。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Etherlyweiner/bedrock/clog"
	"github.com/Etherlyweiner/bedrock/metrics"
)

// Kit 聚合一次测试所需的基础设施
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// New 创建测试工具包，上下文在测试结束时自动取消
func New(t *testing.T) *Kit {
	t.Helper()
	return &Kit{
		Ctx:    NewContext(t),
		Logger: NewLogger(t),
		Meter:  NewMeter(t),
	}
}

// NewContext 返回带 30 秒超时的上下文，测试结束时取消
func NewContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NewLogger 返回 error 级别的控制台 Logger，保持测试输出干净
func NewLogger(t *testing.T) clog.Logger {
	t.Helper()
	logger, err := clog.New(&clog.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("testkit: create logger: %v", err)
	}
	return logger
}

// NewMeter 返回不做任何事的 Meter
func NewMeter(t *testing.T) metrics.Meter {
	t.Helper()
	return metrics.Discard()
}

// NewID 返回 8 字符的随机标识，用于隔离测试数据
func NewID() string {
	return uuid.NewString()[:8]
}
