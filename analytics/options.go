package analytics

import (
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
)

// DefaultConcurrency 同时执行的计算规则上限
const DefaultConcurrency = 4

// Option Aggregator 与 Encoder 的选项
type Option func(*options)

type options struct {
	logger         clog.Logger
	meter          metrics.Meter
	tracerProvider oteltrace.TracerProvider
	concurrency    int
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger:      clog.Discard(),
		meter:       metrics.Discard(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger 注入日志记录器，追加 analytics 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("analytics")
		}
	}
}

// WithMeter 注入自身遥测 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTracerProvider 为每条计算规则创建 Span；默认使用全局 Provider
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithConcurrency 设置并行执行的规则数，小于 1 时忽略
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}
