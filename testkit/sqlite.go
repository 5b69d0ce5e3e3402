package testkit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iwt-cmd/awx/connector"
	"github.com/iwt-cmd/awx/db"
	"github.com/iwt-cmd/awx/store"
)

// NewSQLiteConfig 返回位于测试临时目录下的 SQLite 配置
func NewSQLiteConfig(t *testing.T) *connector.DatabaseConfig {
	return &connector.DatabaseConfig{
		Name:   "test-sqlite",
		Driver: connector.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "awx.db"),
	}
}

// NewDatabase 连接给定配置并包装为 db.DB，生命周期由 t.Cleanup 管理
func NewDatabase(t *testing.T, cfg *connector.DatabaseConfig) db.DB {
	t.Helper()
	conn, err := connector.NewDatabase(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create database connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to %s", cfg.Driver)
	t.Cleanup(func() { _ = conn.Close() })

	database, err := db.New(conn, &db.Config{LogLevel: "silent"}, db.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create db component")
	return database
}

// NewSQLiteDB 返回一个空 SQLite 数据库
func NewSQLiteDB(t *testing.T) db.DB {
	return NewDatabase(t, NewSQLiteConfig(t))
}

// NewStore 在 database 上创建 Store 并建表
func NewStore(t *testing.T, database db.DB, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.New(database, append([]store.Option{store.WithLogger(NewLogger())}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

// NewSQLiteStore 返回一个已建表的 SQLite Store
func NewSQLiteStore(t *testing.T, opts ...store.Option) *store.Store {
	return NewStore(t, NewSQLiteDB(t), opts...)
}
