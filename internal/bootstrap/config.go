package bootstrap

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/iwt-cmd/awx/auth"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/config"
	"github.com/iwt-cmd/awx/connector"
	"github.com/iwt-cmd/awx/db"
	"github.com/iwt-cmd/awx/license"
	"github.com/iwt-cmd/awx/metrics"
	"github.com/iwt-cmd/awx/server"
	"github.com/iwt-cmd/awx/subsystem"
	"github.com/iwt-cmd/awx/trace"
	"github.com/iwt-cmd/awx/xerrors"
)

// ServiceName 进程名，同时用作日志命名空间与链路追踪的服务名
const ServiceName = "awx-metrics"

// AppConfig 进程的全部配置
//
//	log:       { level: info, format: json }
//	server:    { addr: ":8052", path: /metrics }
//	auth:      { secret_key: ... }
//	database:  { driver: postgres, host: ..., database: awx }
//	redis:     { addr: "127.0.0.1:6379" }
//	subsystem: { enabled: true }
//	license:   { instance_count: 100, license_type: enterprise }
type AppConfig struct {
	Log       clog.Config              `mapstructure:"log"`
	Server    server.Config            `mapstructure:"server"`
	Auth      auth.Config              `mapstructure:"auth"`
	Database  connector.DatabaseConfig `mapstructure:"database"`
	DB        db.Config                `mapstructure:"db"`
	Redis     connector.RedisConfig    `mapstructure:"redis"`
	Subsystem subsystem.Config         `mapstructure:"subsystem"`
	License   license.Config           `mapstructure:"license"`
	Telemetry metrics.Config           `mapstructure:"telemetry"`
	Trace     trace.Config             `mapstructure:"trace"`
	System    SystemConfig             `mapstructure:"system"`
}

// SystemConfig awx_system_info 的静态标签
type SystemConfig struct {
	InstallUUID string `mapstructure:"install_uuid"`
	Version     string `mapstructure:"version"`
	URLBase     string `mapstructure:"url_base"`
}

// defaults 同时让 AWX_* 环境变量能覆盖配置文件中缺失的 key
func defaults() map[string]any {
	return map[string]any{
		"log.level":              "info",
		"log.format":             "json",
		"log.output":             "stdout",
		"server.addr":            ":8052",
		"server.path":            "/metrics",
		"auth.secret_key":        "",
		"database.driver":        connector.DriverSQLite,
		"database.dsn":           "",
		"database.path":          "awx.db",
		"database.host":          "",
		"database.port":          0,
		"database.username":      "",
		"database.password":      "",
		"database.database":      "",
		"redis.addr":             "",
		"redis.password":         "",
		"subsystem.enabled":      false,
		"subsystem.node":         "",
		"license.instance_count": 0,
		"license.license_type":   license.DefaultType,
		"license.expiry":         "",
		"telemetry.enabled":      false,
		"telemetry.addr":         "",
		"trace.enabled":          false,
		"trace.endpoint":         "",
		"system.install_uuid":    "",
		"system.version":         "",
		"system.url_base":        "",
	}
}

// Load 读取配置文件与环境变量。path 为空时在默认路径下查找 awx-metrics.yaml
func Load(ctx context.Context, path string, logger clog.Logger) (config.Loader, *AppConfig, error) {
	cfg := &config.Config{Name: ServiceName, Defaults: defaults()}
	if path != "" {
		ext := filepath.Ext(path)
		cfg.Name = strings.TrimSuffix(filepath.Base(path), ext)
		cfg.Paths = []string{filepath.Dir(path)}
		if ext != "" {
			cfg.FileType = strings.TrimPrefix(ext, ".")
		}
	}

	loader, err := config.New(cfg, config.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, xerrors.Wrap(err, "bootstrap: load config")
	}

	app := &AppConfig{}
	if err := loader.Unmarshal(app); err != nil {
		return nil, nil, err
	}
	return loader, app, nil
}
