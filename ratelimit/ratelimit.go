// Package ratelimit 提供进程内令牌桶限流，基于 golang.org/x/time/rate。
//
// 每个限流键（客户端 IP、用户 ID 等）拥有独立的令牌桶，空闲超过 IdleTimeout 的桶
// 会被后台清理。Gin 中间件在拒绝时返回 429 并写 Retry-After。
//
// ## 基本使用
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{Rate: 5, Burst: 10},
//		ratelimit.WithLogger(logger), ratelimit.WithMeter(meter))
//	defer limiter.Close()
//
//	r.Use(ratelimit.GinMiddleware(limiter, nil))
package ratelimit

import (
	"context"
	"time"

	"github.com/iwt-cmd/awx/xerrors"
)

// Limit 限流规则（令牌桶算法）
type Limit struct {
	Rate  float64 // 令牌生成速率（每秒）
	Burst int     // 令牌桶容量
}

// Valid 速率与容量都为正
func (l Limit) Valid() bool {
	return l.Rate > 0 && l.Burst > 0
}

// Limiter 限流器核心接口
type Limiter interface {
	// Allow 尝试获取 1 个令牌（非阻塞）
	Allow(ctx context.Context, key string, limit Limit) (bool, error)

	// AllowN 尝试获取 N 个令牌（非阻塞）
	AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error)

	// Wait 阻塞直到获取 1 个令牌或 ctx 结束
	Wait(ctx context.Context, key string, limit Limit) error

	// Default 配置中的默认规则
	Default() Limit

	// Close 停止后台清理
	Close() error
}

// Config 限流配置
type Config struct {
	// Enabled 为 false 时由调用方跳过限流
	Enabled bool `mapstructure:"enabled"`

	// Rate 与 Burst 构成默认规则
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`

	// CleanupInterval 清理空闲限流器的间隔（默认：1 分钟）
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// IdleTimeout 限流器空闲超时时间（默认：5 分钟）
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

func (c *Config) setDefaults() {
	if c.Rate == 0 {
		c.Rate = 10
	}
	if c.Burst == 0 {
		c.Burst = int(c.Rate)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if !(Limit{Rate: c.Rate, Burst: c.Burst}).Valid() {
		return xerrors.Wrapf(ErrInvalidLimit, "rate=%v burst=%d", c.Rate, c.Burst)
	}
	return nil
}

// New 创建进程内限流器
func New(cfg *Config, opts ...Option) (Limiter, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newStandalone(cfg, applyOptions(opts))
}
