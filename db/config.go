package db

import (
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/iwt-cmd/awx/xerrors"
)

// Config DB 组件配置
type Config struct {
	// LogLevel SQL 日志级别：silent | error | warn | info (默认: warn)
	LogLevel string `mapstructure:"log_level"`

	// SlowThreshold 慢查询阈值 (默认: 200ms)
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`

	// EnableTracing 为每条 SQL 创建 span
	EnableTracing bool `mapstructure:"enable_tracing"`

	// TraceQueryVariables span 中是否记录查询参数
	TraceQueryVariables bool `mapstructure:"trace_query_variables"`
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.SlowThreshold == 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		return xerrors.Wrapf(ErrInvalidConfig, "unsupported log level %q", c.LogLevel)
	}
	if c.SlowThreshold < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "slow threshold must be >= 0")
	}
	return nil
}

func (c *Config) logLevel() gormlogger.LogLevel {
	switch c.LogLevel {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
