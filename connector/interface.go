// Package connector 管理外部数据源的连接生命周期：关系型数据库（SQLite、PostgreSQL、MySQL）与 Redis。
//
// 约定：
//   - NewXXX 只校验配置，不建立连接；Connect 才真正连接，且可重复调用
//   - 谁创建谁关闭：组件（db、subsystem）只借用连接器，不调用 Close
//   - HealthCheck 实时探测并刷新缓存状态，IsHealthy 只读缓存
//
// 基本使用：
//
//	conn, err := connector.NewDatabase(&cfg.Database, connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	gormDB := conn.GetClient()
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Connector 所有连接器的通用行为，方法均为并发安全
type Connector interface {
	// Connect 建立连接，幂等
	Connect(ctx context.Context) error

	// Close 关闭连接，幂等；关闭后 HealthCheck 返回 ErrNotConnected
	Close() error

	// HealthCheck 发送探测请求并更新 IsHealthy 的缓存
	HealthCheck(ctx context.Context) error

	IsHealthy() bool

	// Name 连接器实例名称，用于日志
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端，Connect 之前或 Close 之后可能为 nil
	GetClient() T
}

// RedisConnector Redis 连接器
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// DatabaseConnector 基于 GORM 的关系型数据库连接器
type DatabaseConnector interface {
	TypedConnector[*gorm.DB]

	// Driver 返回驱动名称：sqlite | postgres | mysql
	Driver() string
}
