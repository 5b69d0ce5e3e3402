package connector

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwt-cmd/awx/xerrors"
)

// 支持的数据库驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DatabaseConfig 关系型数据库连接配置
//
// DSN 非空时直接使用；否则 sqlite 使用 Path，postgres/mysql 由 Host/Port 等字段拼接。
type DatabaseConfig struct {
	Name           string        `mapstructure:"name"`            // 连接器名称 (默认: "default")
	Driver         string        `mapstructure:"driver"`          // sqlite | postgres | mysql (默认: sqlite)
	MaxRetries     int           `mapstructure:"max_retries"`     // 连接重试次数 (默认: 3)
	RetryInterval  time.Duration `mapstructure:"retry_interval"`  // 重试间隔 (默认: 1s)
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // 单次连接超时 (默认: 5s)

	DSN      string `mapstructure:"dsn"`
	Path     string `mapstructure:"path"` // sqlite 文件路径 (默认: awx.db)
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"` // 默认 5432 / 3306
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"` // postgres (默认: disable)
	Timezone string `mapstructure:"timezone"` // postgres (默认: UTC)
	Charset  string `mapstructure:"charset"`  // mysql (默认: utf8mb4)

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 默认 5
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 默认 20
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 默认 1h
}

func (c *DatabaseConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	c.Driver = strings.ToLower(c.Driver)
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 20
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}

	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			c.Path = "awx.db"
		}
	case DriverPostgres:
		if c.Port == 0 {
			c.Port = 5432
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.Timezone == "" {
			c.Timezone = "UTC"
		}
	case DriverMySQL:
		if c.Port == 0 {
			c.Port = 3306
		}
		if c.Charset == "" {
			c.Charset = "utf8mb4"
		}
	}
}

func (c *DatabaseConfig) validate() error {
	c.setDefaults()
	switch c.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres, DriverMySQL:
		if c.DSN != "" {
			return nil
		}
		if c.Host == "" || c.Database == "" || c.Username == "" {
			return xerrors.Wrapf(ErrConfig, "%s requires host, database and username", c.Driver)
		}
		return nil
	default:
		return xerrors.Wrapf(ErrConfig, "unsupported driver %q", c.Driver)
	}
}

// dsn 返回驱动可用的连接串
func (c *DatabaseConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode, c.Timezone)
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
			c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
	default:
		return c.Path
	}
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Name string `mapstructure:"name"` // 默认 "default"

	Addr     string `mapstructure:"addr"` // [必填] 如 "127.0.0.1:6379"
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`      // 默认 10
	MinIdleConns int           `mapstructure:"min_idle_conns"` // 默认 0
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // 默认 5s
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // 默认 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // 默认 3s
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return xerrors.Wrap(ErrConfig, "redis addr is required")
	}
	if c.DB < 0 {
		return xerrors.Wrap(ErrConfig, "redis db must be >= 0")
	}
	return nil
}
