// Package license 保存当前许可证事实，供 awx_system_info 与 awx_license_* 指标读取。
//
// 事实来自配置文件的 license 段，配置变化时原子替换，正在进行的采集读到的
// 要么是旧值要么是新值。
package license

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/iwt-cmd/awx/analytics"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/config"
	"github.com/iwt-cmd/awx/xerrors"
)

// ConfigKey 配置文件中的段名
const ConfigKey = "license"

// DefaultType 未配置许可证时的类型
const DefaultType = "open"

// ErrInvalidConfig 许可证配置非法
var ErrInvalidConfig = xerrors.New("license: invalid config")

// Config 许可证配置
type Config struct {
	// InstanceCount 许可的受管主机数
	InstanceCount int64 `mapstructure:"instance_count"`

	// LicenseType 许可证类型（默认：open）
	LicenseType string `mapstructure:"license_type"`

	// Expiry 过期时间，RFC3339 或 2006-01-02，为空表示不过期
	Expiry string `mapstructure:"expiry"`
}

// Facts 解析为 analytics.LicenseFacts
func (c *Config) Facts() (analytics.LicenseFacts, error) {
	if c.InstanceCount < 0 {
		return analytics.LicenseFacts{}, xerrors.Wrapf(ErrInvalidConfig, "instance_count %d", c.InstanceCount)
	}
	facts := analytics.LicenseFacts{
		InstanceCount: c.InstanceCount,
		LicenseType:   strings.TrimSpace(c.LicenseType),
	}
	if facts.LicenseType == "" {
		facts.LicenseType = DefaultType
	}

	if raw := strings.TrimSpace(c.Expiry); raw != "" {
		expiry, err := parseExpiry(raw)
		if err != nil {
			return analytics.LicenseFacts{}, err
		}
		facts.Expiry = expiry
	}
	return facts, nil
}

func parseExpiry(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, xerrors.Wrapf(ErrInvalidConfig, "expiry %q", raw)
}

// Provider 当前许可证事实，实现 analytics.LicenseSource
type Provider struct {
	facts  atomic.Pointer[analytics.LicenseFacts]
	logger clog.Logger
}

var _ analytics.LicenseSource = (*Provider)(nil)

// Option Provider 选项
type Option func(*Provider)

// WithLogger 注入日志记录器，追加 license 命名空间
func WithLogger(l clog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l.WithNamespace("license")
		}
	}
}

// New 创建 Provider，cfg 为 nil 时使用空许可证
func New(cfg *Config, opts ...Option) (*Provider, error) {
	p := &Provider{logger: clog.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := p.Update(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// LicenseFacts 返回当前事实
func (p *Provider) LicenseFacts(context.Context) (analytics.LicenseFacts, error) {
	return *p.facts.Load(), nil
}

// Update 替换当前事实，cfg 非法时保留旧值
func (p *Provider) Update(cfg *Config) error {
	facts, err := cfg.Facts()
	if err != nil {
		return err
	}
	p.facts.Store(&facts)
	return nil
}

// Watch 监听配置中的 license 段，变化时更新事实，直到 ctx 结束
func (p *Provider) Watch(ctx context.Context, loader config.Loader) error {
	events, err := loader.Watch(ctx, ConfigKey)
	if err != nil {
		return xerrors.Wrap(err, "license: watch config")
	}

	go func() {
		for range events {
			var cfg Config
			if err := loader.UnmarshalKey(ConfigKey, &cfg); err != nil {
				p.logger.Warn("decode license config failed", clog.Error(err))
				continue
			}
			if err := p.Update(&cfg); err != nil {
				p.logger.Warn("invalid license config ignored", clog.Error(err))
				continue
			}
			facts := *p.facts.Load()
			p.logger.Info("license reloaded",
				clog.Int64("instance_count", facts.InstanceCount),
				clog.String("license_type", facts.LicenseType),
				clog.Time("expiry", facts.Expiry))
		}
	}()
	return nil
}
