package testkit

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/iwt-cmd/awx/connector"
	"github.com/iwt-cmd/awx/db"
)

// NewPostgresConfig 使用 testcontainers 启动 PostgreSQL 并返回连接配置
func NewPostgresConfig(t *testing.T) *connector.DatabaseConfig {
	t.Helper()
	RequireContainers(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("awx"),
		postgres.WithUsername("awx"),
		postgres.WithPassword("awx_password"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	port, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	return &connector.DatabaseConfig{
		Name:     "test-postgres",
		Driver:   connector.DriverPostgres,
		Host:     host,
		Port:     port,
		Username: "awx",
		Password: "awx_password",
		Database: "awx",
	}
}

// NewPostgresDB 返回一个空 PostgreSQL 数据库
func NewPostgresDB(t *testing.T) db.DB {
	return NewDatabase(t, NewPostgresConfig(t))
}
