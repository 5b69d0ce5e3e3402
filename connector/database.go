package connector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/xerrors"
)

type databaseConnector struct {
	cfg     *DatabaseConfig
	logger  clog.Logger
	mu      sync.RWMutex
	db      *gorm.DB
	healthy atomic.Bool
}

// NewDatabase 创建数据库连接器，实际连接在 Connect 时建立
func NewDatabase(cfg *DatabaseConfig, opts ...Option) (DatabaseConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "database config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &databaseConnector{
		cfg:    cfg,
		logger: o.logger.With(clog.String("connector", cfg.Driver), clog.String("name", cfg.Name)),
	}, nil
}

func (c *databaseConnector) dialector() gorm.Dialector {
	switch c.cfg.Driver {
	case DriverPostgres:
		return postgres.Open(c.cfg.dsn())
	case DriverMySQL:
		return mysql.Open(c.cfg.dsn())
	default:
		return sqlite.Open(c.cfg.dsn())
	}
}

// Connect 按 MaxRetries 重试，ctx 取消时立即返回
func (c *databaseConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		db, err := c.open(ctx)
		if err == nil {
			c.db = db
			c.healthy.Store(true)
			c.logger.Info("database connected", clog.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		c.logger.Warn("database connect attempt failed",
			clog.Int("attempt", attempt), clog.Int("max_retries", c.cfg.MaxRetries), clog.Error(err))

		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return xerrors.Wrapf(xerrors.Join(ErrConnection, ctx.Err()), "%s connector[%s]", c.cfg.Driver, c.cfg.Name)
		case <-time.After(c.cfg.RetryInterval):
		}
	}
	return xerrors.Wrapf(xerrors.Join(ErrConnection, lastErr), "%s connector[%s]", c.cfg.Driver, c.cfg.Name)
}

func (c *databaseConnector) open(ctx context.Context) (*gorm.DB, error) {
	db, err := gorm.Open(c.dialector(), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(c.cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(c.cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (c *databaseConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}

	sqlDB, err := c.db.DB()
	if err != nil {
		return xerrors.Wrapf(err, "%s connector[%s]: close", c.cfg.Driver, c.cfg.Name)
	}
	c.db = nil
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("close database failed", clog.Error(err))
		return xerrors.Wrapf(err, "%s connector[%s]: close", c.cfg.Driver, c.cfg.Name)
	}
	c.logger.Info("database connection closed")
	return nil
}

func (c *databaseConnector) HealthCheck(ctx context.Context) error {
	db := c.GetClient()
	if db == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrNotConnected, "%s connector[%s]", c.cfg.Driver, c.cfg.Name)
	}

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("database health check failed", clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrHealthCheck, err), "%s connector[%s]", c.cfg.Driver, c.cfg.Name)
	}

	c.healthy.Store(true)
	return nil
}

func (c *databaseConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *databaseConnector) Name() string {
	return c.cfg.Name
}

func (c *databaseConnector) Driver() string {
	return c.cfg.Driver
}

func (c *databaseConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
