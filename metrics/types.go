// Package metrics 提供进程自身的遥测指标（请求 RED、采集失败次数、Go runtime）。
//
// 基于 OpenTelemetry SDK，通过 Prometheus exporter 暴露在独立的 Registry 上，
// 与业务 /metrics 输出互不混合。
//
//	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "awx-metrics"})
//	if err != nil {
//		return err
//	}
//	defer meter.Shutdown(ctx)
//
//	failures, _ := meter.Counter("awx_exporter_collect_failures_total", "Failed metric computations.")
//	failures.Inc(ctx, metrics.L("metric", "awx_hosts_total"))
//
//	http.Handle("/metrics", meter.Handler())
package metrics

import (
	"context"
	"net/http"
)

// Counter 单调递增的累计值
type Counter interface {
	Inc(ctx context.Context, labels ...Label)

	// Add 增加给定值，负数会被忽略
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 可增可减的瞬时值
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 值分布，例如请求耗时
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标工厂，创建的指标并发安全
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Handler 以 Prometheus 文本格式输出本 Meter 的全部指标
	Handler() http.Handler

	// Shutdown 刷新并关闭，之后的记录会被丢弃
	Shutdown(ctx context.Context) error
}

// MetricOption 创建指标时的选项
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项
type MetricOptions struct {
	Unit    string    // UCUM 单位，例如 s、By
	Buckets []float64 // 仅 Histogram 使用
}

// WithUnit 设置单位
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}

// WithBuckets 设置 Histogram 的桶边界
func WithBuckets(buckets []float64) MetricOption {
	return func(o *MetricOptions) {
		o.Buckets = append([]float64(nil), buckets...)
	}
}

func applyMetricOptions(opts []MetricOption) *MetricOptions {
	o := &MetricOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
