package testkit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iwt-cmd/awx/connector"
)

// NewMiniRedis 启动进程内 Redis，测试结束自动关闭
func NewMiniRedis(t *testing.T) *miniredis.Miniredis {
	return miniredis.RunT(t)
}

// NewRedisConnector 返回连接到 mr 的 Redis 连接器
func NewRedisConnector(t *testing.T, mr *miniredis.Miniredis) connector.RedisConnector {
	t.Helper()
	conn, err := connector.NewRedis(&connector.RedisConfig{
		Name: "test-redis",
		Addr: mr.Addr(),
	}, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create redis connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to redis")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// NewRedisClient 启动 miniredis 并返回原生客户端
func NewRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := NewMiniRedis(t)
	return NewRedisConnector(t, mr).GetClient(), mr
}
