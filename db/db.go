// Package db 在 connector.DatabaseConnector 之上提供 GORM 组件：
// 统一的 SQL 日志（clog）、慢查询告警、OpenTelemetry 追踪（otelgorm）与只读会话。
//
// 基本使用：
//
//	conn, _ := connector.NewDatabase(&cfg.Database, connector.WithLogger(logger))
//	_ = conn.Connect(ctx)
//	database, _ := db.New(conn, &cfg.DB, db.WithLogger(logger), db.WithTracerProvider(tp))
//	var n int64
//	database.DB(ctx).Model(&store.Host{}).Count(&n)
//
// 组件只借用连接器，不负责关闭连接。
package db

import (
	"context"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/connector"
	"github.com/iwt-cmd/awx/xerrors"
)

// DB 数据库组件
type DB interface {
	// DB 返回绑定 ctx 的 *gorm.DB
	DB(ctx context.Context) *gorm.DB

	// Transaction 执行事务，fn 中的 tx 仅在事务内有效
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error

	// Ping 探测底层连接
	Ping(ctx context.Context) error

	// Driver 返回底层驱动名称
	Driver() string

	Close() error
}

type database struct {
	conn   connector.DatabaseConnector
	client *gorm.DB
	logger clog.Logger
}

// New 创建数据库组件，conn 必须已经 Connect
func New(conn connector.DatabaseConnector, cfg *Config, opts ...Option) (DB, error) {
	if conn == nil {
		return nil, ErrConnectorRequired
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	base := conn.GetClient()
	if base == nil {
		return nil, xerrors.Wrapf(connector.ErrNotConnected, "db: connector %s", conn.Name())
	}

	if cfg.EnableTracing {
		pluginOpts := []otelgorm.Option{
			otelgorm.WithDBName(conn.Name()),
			otelgorm.WithoutMetrics(),
		}
		if o.tracerProvider != nil {
			pluginOpts = append(pluginOpts, otelgorm.WithTracerProvider(o.tracerProvider))
		}
		if !cfg.TraceQueryVariables {
			pluginOpts = append(pluginOpts, otelgorm.WithoutQueryVariables())
		}
		if err := base.Use(otelgorm.NewPlugin(pluginOpts...)); err != nil {
			return nil, xerrors.Wrap(err, "db: register otelgorm plugin")
		}
	}

	client := base.Session(&gorm.Session{
		Logger: newGormLogger(o.logger, cfg.logLevel(), cfg.SlowThreshold),
	})

	return &database{conn: conn, client: client, logger: o.logger}, nil
}

func (d *database) DB(ctx context.Context) *gorm.DB {
	return d.client.WithContext(ctx)
}

func (d *database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return d.client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}

func (d *database) Ping(ctx context.Context) error {
	return d.conn.HealthCheck(ctx)
}

func (d *database) Driver() string {
	return d.conn.Driver()
}

// Close 连接由连接器管理，这里不做任何事
func (d *database) Close() error {
	return nil
}
