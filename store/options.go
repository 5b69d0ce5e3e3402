package store

import (
	"time"

	"github.com/iwt-cmd/awx/clog"
)

// Option Store 选项
type Option func(*options)

type options struct {
	logger clog.Logger
	now    func() time.Time
}

// WithLogger 注入日志记录器，追加 store 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("store")
		}
	}
}

// WithClock 替换当前时间来源，判断会话是否过期时使用
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
