package subsystem

import (
	"time"

	"github.com/iwt-cmd/awx/breaker"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
)

// Option Recorder 与 Reader 共用的选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	breaker breaker.Breaker
	now     func() time.Time
}

// WithLogger 注入日志记录器，追加 subsystem 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("subsystem")
		}
	}
}

// WithMeter 注入 Meter，熔断器的指标也记录在这里
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithBreaker 使用外部熔断器，默认按 Config.Breaker 创建
func WithBreaker(b breaker.Breaker) Option {
	return func(o *options) {
		o.breaker = b
	}
}

// WithClock 替换时间来源，计算 flush 耗时使用
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
