package subsystem

import (
	"os"
	"time"

	"github.com/iwt-cmd/awx/breaker"
	"github.com/iwt-cmd/awx/xerrors"
)

// Config 子系统指标配置
type Config struct {
	// Enabled 为 false 时不注册子系统指标
	Enabled bool `mapstructure:"enabled"`

	// KeyPrefix Redis 键前缀（默认：awx_metrics）
	KeyPrefix string `mapstructure:"key_prefix"`

	// Node 本节点名，Recorder 写入时使用（默认：主机名）
	Node string `mapstructure:"node"`

	// FlushInterval Recorder 写入 Redis 的间隔（默认：3s）
	FlushInterval time.Duration `mapstructure:"flush_interval"`

	// NodeTTL 节点数据在最后一次写入后的保留时间，0 表示不过期
	NodeTTL time.Duration `mapstructure:"node_ttl"`

	// ReadTimeout Reader 单次读取的超时（默认：2s）
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// Breaker Reader 使用的熔断配置
	Breaker breaker.Config `mapstructure:"breaker"`
}

func (c *Config) setDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "awx_metrics"
	}
	if c.Node == "" {
		if host, err := os.Hostname(); err == nil {
			c.Node = host
		}
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 3 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.Node == "" {
		return xerrors.Wrap(ErrInvalidConfig, "node name is required")
	}
	if c.NodeTTL < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "node_ttl must not be negative")
	}
	return nil
}

// nodesKey 记录所有上报过的节点
func (c *Config) nodesKey() string {
	return c.KeyPrefix + ":nodes"
}

// nodeKey 单个节点的指标 hash，field 为指标名
func (c *Config) nodeKey(node string) string {
	return c.KeyPrefix + ":node:" + node
}
