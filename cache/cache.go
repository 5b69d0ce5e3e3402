// Package cache 提供进程内的本地缓存，基于 otter。
//
// 条目按写入时间过期，读取不会续期。容量满时按 otter 的 S3-FIFO 策略淘汰。
// 值以原样保存，调用方需要保证缓存的值在写入后不再被修改。
//
// 基本使用：
//
//	c, _ := cache.New[[]byte](&cache.Config{TTL: 5 * time.Second, Capacity: 16},
//		cache.WithLogger(logger), cache.WithMeter(meter), cache.WithName("snapshot"))
//
//	if body, ok := c.Get(ctx, "dbonly=0"); ok {
//		return body
//	}
//	c.Set(ctx, "dbonly=0", body)
package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
	"github.com/iwt-cmd/awx/xerrors"
)

// 指标名
const (
	MetricRequestsTotal = "awx_exporter_cache_requests_total"

	LabelCache  = "cache"
	LabelResult = "result"
)

// Config 本地缓存配置
type Config struct {
	// TTL 写入后的存活时间，<= 0 表示禁用缓存（默认：0）
	TTL time.Duration `mapstructure:"ttl"`

	// Capacity 最大条目数（默认：1024）
	Capacity int `mapstructure:"capacity"`
}

func (c *Config) setDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 1024
	}
}

// Enabled TTL 为正时启用
func (c *Config) Enabled() bool {
	return c != nil && c.TTL > 0
}

// Cache 本地缓存，key 固定为 string
type Cache[V any] struct {
	name     string
	cache    *otter.Cache[string, V]
	logger   clog.Logger
	requests metrics.Counter
}

// New 创建缓存。cfg 未启用时返回 ErrDisabled，调用方据此跳过缓存
func New[V any](cfg *Config, opts ...Option) (*Cache[V], error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	cfg.setDefaults()
	o := applyOptions(opts)

	inner, err := otter.New(&otter.Options[string, V]{
		MaximumSize:      cfg.Capacity,
		ExpiryCalculator: otter.ExpiryWriting[string, V](cfg.TTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "cache: build otter cache")
	}

	requests, err := o.meter.Counter(MetricRequestsTotal, "Local cache lookups by result")
	if err != nil {
		return nil, err
	}

	o.logger.Debug("local cache created",
		clog.String(LabelCache, o.name),
		clog.Duration("ttl", cfg.TTL),
		clog.Int("capacity", cfg.Capacity))

	return &Cache[V]{
		name:     o.name,
		cache:    inner,
		logger:   o.logger,
		requests: requests,
	}, nil
}

// Get 读取未过期的值
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	v, ok := c.cache.GetIfPresent(key)
	result := "miss"
	if ok {
		result = "hit"
	}
	c.requests.Inc(ctx, metrics.L(LabelCache, c.name), metrics.L(LabelResult, result))
	return v, ok
}

// Set 写入值，覆盖同名条目并重置过期时间
func (c *Cache[V]) Set(_ context.Context, key string, v V) {
	c.cache.Set(key, v)
}

// Delete 删除条目
func (c *Cache[V]) Delete(_ context.Context, key string) {
	c.cache.Invalidate(key)
}

// Purge 清空所有条目
func (c *Cache[V]) Purge() {
	c.cache.InvalidateAll()
	c.logger.Debug("local cache purged", clog.String(LabelCache, c.name))
}

// Len 当前条目数（近似值）
func (c *Cache[V]) Len() int {
	return c.cache.EstimatedSize()
}
