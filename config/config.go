package config

import (
	"strings"

	"github.com/iwt-cmd/awx/clog"
)

// DefaultEnvPrefix 环境变量前缀，例如 AWX_SERVER_ADDR 覆盖 server.addr
const DefaultEnvPrefix = "AWX"

// Config 加载器配置
type Config struct {
	Name      string         // 配置文件名称（不含扩展名）
	Paths     []string       // 搜索路径，默认 [".", "./config"]
	FileType  string         // yaml | json | toml
	EnvPrefix string         // 默认 AWX
	Defaults  map[string]any // 默认值，同时让环境变量可以覆盖配置文件中不存在的 key
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = DefaultEnvPrefix
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
}

// Option 加载器选项
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 注入日志记录器，加载与热更新过程通过它输出
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("config")
		}
	}
}

// New 创建配置加载器，cfg 为 nil 时使用默认配置
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return newLoader(cfg, o), nil
}
