package connector

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/iwt-cmd/awx/clog"
)

type options struct {
	logger         clog.Logger
	tracerProvider trace.TracerProvider
}

// Option 连接器选项
type Option func(*options)

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithTracerProvider 为 Redis 客户端开启 OpenTelemetry 追踪
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
