package server

import (
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
)

// Option Server 选项
type Option func(*options)

type options struct {
	serviceName    string
	logger         clog.Logger
	meter          metrics.Meter
	tracerProvider oteltrace.TracerProvider
}

// WithLogger 注入日志记录器，追加 server 命名空间。分析、认证等子组件共用同一个根 logger
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeter 自身指标（RED、失败计数、缓存命中）写入的 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTracerProvider 请求与采集的 Span 使用的 Provider，默认全局
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithServiceName 服务名，用于 Span 与 RED 指标
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{serviceName: "awx-metrics", logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
