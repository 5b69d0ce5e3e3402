package testkit

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iwt-cmd/awx/connector"
	"github.com/iwt-cmd/awx/db"
)

// NewMySQLConfig 使用 testcontainers 启动 MySQL 并返回连接配置
func NewMySQLConfig(t *testing.T) *connector.DatabaseConfig {
	t.Helper()
	RequireContainers(t)
	ctx := context.Background()

	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("awx"),
		mysql.WithUsername("awx"),
		mysql.WithPassword("awx_password"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)
	port, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	return &connector.DatabaseConfig{
		Name:     "test-mysql",
		Driver:   connector.DriverMySQL,
		Host:     host,
		Port:     port,
		Username: "awx",
		Password: "awx_password",
		Database: "awx",
	}
}

// NewMySQLDB 返回一个空 MySQL 数据库
func NewMySQLDB(t *testing.T) db.DB {
	return NewDatabase(t, NewMySQLConfig(t))
}
