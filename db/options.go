package db

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/iwt-cmd/awx/clog"
)

// Option DB 组件选项
type Option func(*options)

type options struct {
	logger         clog.Logger
	tracerProvider trace.TracerProvider
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("db")
		}
	}
}

// WithTracerProvider 指定 otelgorm 使用的 TracerProvider，未指定时使用全局 provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}
