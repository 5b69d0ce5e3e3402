package connector

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/xerrors"
)

type redisConnector struct {
	cfg     *RedisConfig
	client  *redis.Client
	logger  clog.Logger
	healthy atomic.Bool
	closed  atomic.Bool
}

// NewRedis 创建 Redis 连接器。go-redis 客户端自带连接池，这里只创建不拨号
func NewRedis(cfg *RedisConfig, opts ...Option) (RedisConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "redis config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	c := &redisConnector{
		cfg:    cfg,
		logger: o.logger.With(clog.String("connector", "redis"), clog.String("name", cfg.Name)),
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaintNotificationsConfig: &maintnotifications.Config{
				Mode: maintnotifications.ModeDisabled,
			},
		}),
	}

	if o.tracerProvider != nil {
		if err := redisotel.InstrumentTracing(c.client, redisotel.WithTracerProvider(o.tracerProvider)); err != nil {
			return nil, xerrors.Wrap(err, "redis: instrument tracing")
		}
	}
	return c, nil
}

func (c *redisConnector) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return xerrors.Wrapf(ErrNotConnected, "redis connector[%s]: closed", c.cfg.Name)
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Error("redis connect failed", clog.String("addr", c.cfg.Addr), clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrConnection, err), "redis connector[%s]", c.cfg.Name)
	}
	c.healthy.Store(true)
	c.logger.Info("redis connected", clog.String("addr", c.cfg.Addr))
	return nil
}

func (c *redisConnector) Close() error {
	c.healthy.Store(false)
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.client.Close(); err != nil {
		c.logger.Error("close redis failed", clog.Error(err))
		return xerrors.Wrapf(err, "redis connector[%s]: close", c.cfg.Name)
	}
	return nil
}

func (c *redisConnector) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrNotConnected, "redis connector[%s]", c.cfg.Name)
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("redis health check failed", clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrHealthCheck, err), "redis connector[%s]", c.cfg.Name)
	}
	c.healthy.Store(true)
	return nil
}

func (c *redisConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *redisConnector) Name() string {
	return c.cfg.Name
}

func (c *redisConnector) GetClient() *redis.Client {
	return c.client
}
