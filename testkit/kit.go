// Package testkit 提供测试公用的依赖构造：日志、指标、数据库、Redis 与固定数据集。
//
// 所有资源的生命周期由 t.Cleanup 管理。需要 Docker 的容器类资源只在设置
// AWX_TEST_CONTAINERS 环境变量时启用，否则跳过当前测试。
package testkit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
)

// ContainersEnv 开启 testcontainers 的环境变量
const ContainersEnv = "AWX_TEST_CONTAINERS"

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包
func NewKit(t *testing.T) *Kit {
	ctx, cancel := NewContext(t, 30*time.Second)
	t.Cleanup(cancel)
	return &Kit{
		Ctx:    ctx,
		Logger: NewLogger(),
		Meter:  NewMeter(t),
	}
}

// NewLogger 返回一个用于测试的 logger
// 设置 AWX_TEST_LOG 时输出 debug 日志，否则丢弃
func NewLogger() clog.Logger {
	if os.Getenv("AWX_TEST_LOG") == "" {
		return clog.Discard()
	}
	logger, err := clog.New(clog.NewDevDefaultConfig(), clog.WithNamespace("test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回一个启用的 meter，拥有独立的 Registry，可通过 Handler 抓取
func NewMeter(t *testing.T) metrics.Meter {
	t.Helper()
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "awx-test"})
	if err != nil {
		t.Fatalf("failed to create meter: %v", err)
	}
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })
	return meter
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
func NewID() string {
	return uuid.New().String()[0:8]
}

// RequireContainers 未开启容器测试时跳过
func RequireContainers(t *testing.T) {
	t.Helper()
	if testing.Short() || os.Getenv(ContainersEnv) == "" {
		t.Skipf("set %s=1 to run container backed tests", ContainersEnv)
	}
}
