// Package config 提供统一的配置管理能力，基于 Viper 实现。
//
// 配置优先级：环境变量 > .env > 环境特定配置 (config.<env>.yaml) > 基础配置 > 默认值。
// 环境由 <PREFIX>_ENV 指定，例如 AWX_ENV=prod 会合并 config.prod.yaml。
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{Paths: []string{"./config"}})
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//	var cfg AppConfig
//	_ = loader.Unmarshal(&cfg)
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for ev := range ch {
//		logger.Info("log level changed", clog.Any("value", ev.Value))
//	}
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置并开始监听文件变化
	Load(ctx context.Context) error

	Get(key string) any

	// Unmarshal 将整个配置解码到结构体（mapstructure 标签）
	Unmarshal(v any) error

	UnmarshalKey(key string, v any) error

	// Watch 监听某个 key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 检查当前配置是否可用
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // file
	Timestamp time.Time
}
