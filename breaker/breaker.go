// Package breaker 提供按键隔离的熔断器，基于 gobreaker。
//
// 每个键（后端名、Redis 地址等）拥有独立的熔断器：闭合时正常放行，
// 失败率超过阈值后打开并快速失败，Timeout 之后进入半开状态放行少量探测请求。
//
// ## 基本使用
//
//	brk, _ := breaker.New(&breaker.Config{
//		Timeout:         30 * time.Second,
//		FailureRatio:    0.6,
//		MinimumRequests: 10,
//	}, breaker.WithLogger(logger))
//
//	v, err := brk.Execute(ctx, "subsystem", func() (any, error) {
//		return reader.read(ctx)
//	})
//	if errors.Is(err, breaker.ErrOpenState) {
//		// 快速失败
//	}
package breaker

import (
	"context"
	"time"

	"github.com/iwt-cmd/awx/xerrors"
)

// Breaker 熔断器核心接口
type Breaker interface {
	// Execute 执行受熔断保护的函数，key 决定使用哪一个熔断器。
	// 熔断打开时不调用 fn，返回 ErrOpenState 或降级函数的结果
	Execute(ctx context.Context, key string, fn func() (any, error)) (any, error)

	// State 获取指定键的熔断器状态，未使用过的键视为闭合
	State(key string) (State, error)
}

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// MaxRequests 半开状态下允许通过的最大请求数（默认：1）
	MaxRequests uint32 `mapstructure:"max_requests"`

	// Interval 闭合状态下的统计周期（默认：0，不清空统计）
	Interval time.Duration `mapstructure:"interval"`

	// Timeout 打开状态持续时间（默认：60s）
	Timeout time.Duration `mapstructure:"timeout"`

	// FailureRatio 失败率阈值，取值 (0, 1]（默认：0.6）
	FailureRatio float64 `mapstructure:"failure_ratio"`

	// MinimumRequests 触发熔断的最小请求数（默认：10）
	MinimumRequests uint32 `mapstructure:"minimum_requests"`
}

func (c *Config) setDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.FailureRatio < 0 || c.FailureRatio > 1 {
		return xerrors.Wrapf(ErrInvalidConfig, "failure_ratio %v out of range", c.FailureRatio)
	}
	if c.Timeout < 0 || c.Interval < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "durations must not be negative")
	}
	return nil
}

// New 创建熔断器实例
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newBreaker(cfg, applyOptions(opts))
}
