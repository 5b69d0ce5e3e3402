package server

import (
	"strings"
	"time"

	"github.com/iwt-cmd/awx/cache"
	"github.com/iwt-cmd/awx/ratelimit"
	"github.com/iwt-cmd/awx/xerrors"
)

// APIPath AWX REST API 下的指标路径，与 Path 同时提供
const APIPath = "/api/v2/metrics/"

// Config HTTP 服务配置
type Config struct {
	// Addr 监听地址（默认：:8052）
	Addr string `mapstructure:"addr"`

	// Path 指标路径（默认：/metrics）
	Path string `mapstructure:"path"`

	// ReadHeaderTimeout 读取请求头超时（默认：5s）
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`

	// CollectTimeout 单次采集的超时（默认：30s）
	CollectTimeout time.Duration `mapstructure:"collect_timeout"`

	// ShutdownTimeout 优雅关闭等待时间（默认：10s）
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Concurrency 同时执行的计算规则数（默认：4）
	Concurrency int `mapstructure:"concurrency"`

	RateLimit ratelimit.Config `mapstructure:"rate_limit"`
	Cache     cache.Config     `mapstructure:"cache"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8052"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 5 * time.Second
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if !strings.HasPrefix(c.Path, "/") {
		return xerrors.Wrapf(ErrInvalidConfig, "path %q must start with /", c.Path)
	}
	if c.Path == HealthPath {
		return xerrors.Wrapf(ErrInvalidConfig, "path %q is reserved", c.Path)
	}
	return nil
}
