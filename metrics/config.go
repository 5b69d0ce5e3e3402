package metrics

import (
	"strings"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/xerrors"
)

// Config 自身遥测配置
//
//	telemetry:
//	  enabled: true
//	  service_name: awx-metrics
//	  addr: ":9091"
//	  path: /metrics
//	  enable_runtime: true
type Config struct {
	// Enabled 为 false 时 New 返回 Discard()
	Enabled bool `mapstructure:"enabled"`

	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`

	// Addr 遥测端口监听地址，为空表示不单独监听
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`

	// EnableRuntime 采集 Go runtime 指标（GC、goroutine、内存）
	EnableRuntime bool `mapstructure:"enable_runtime"`
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "awx-metrics"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "metrics: path %q must start with /", c.Path)
	}
	return nil
}

// Option Meter 选项
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 注入日志记录器，自动追加 metrics 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}
